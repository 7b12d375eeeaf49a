package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "triage-backend/cmd/api"
	"triage-backend/internal/notification"
	"triage-backend/internal/triage/domain"
	"triage-backend/internal/triage/queue"
	"triage-backend/internal/triage/repository"
	"triage-backend/internal/triage/scheduler"
	"triage-backend/internal/triage/usecase"
	"triage-backend/pkg/ai"
	"triage-backend/pkg/config"
	"triage-backend/pkg/database"
	"triage-backend/pkg/fcm"
	"triage-backend/pkg/gmail"
	"triage-backend/pkg/imap"

	"golang.org/x/oauth2"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database (migrates emails, classifications, drafts)
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize repositories (dependency injection)
	triageRepo := repository.NewTriageRepository(db)

	// External classifier: decided once here and handed to the reconciler
	ollamaSettings := ai.NewOllamaSettings(cfg.OllamaBaseURL, cfg.OllamaModel)
	capability, err := ai.NewClassifierService(ai.Config{
		Provider:       ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:   cfg.GeminiAPIKey,
		GeminiModel:    cfg.GeminiModel,
		GeminiBaseURL:  cfg.GeminiBaseURL,
		OllamaBaseURL:  cfg.OllamaBaseURL,
		OllamaModel:    cfg.OllamaModel,
		OllamaSettings: ollamaSettings,
	})
	if err != nil {
		log.Printf("[WARN] Failed to initialize AI service, using heuristics only: %v", err)
		capability = nil
	}

	var classifierService ai.ClassifierService
	if capability != nil {
		classifierService = capability
		if cfg.ClassifierBreaker {
			classifierService = ai.NewBreakerService(capability)
		}
		log.Printf("AI classifier initialized with provider: %s", cfg.AIProvider)
	} else {
		log.Printf("[WARN] No AI classifier configured, using heuristics only")
	}
	classifier := usecase.NewClassifier(classifierService, usecase.WithTimeout(cfg.ClassifierTimeout))

	fetchOpts := domain.FetchOptions{
		MaxResults:    cfg.FetchMaxResults,
		LookbackHours: cfg.FetchLookbackHours,
		OnlyUnread:    &cfg.FetchOnlyUnread,
	}

	var pipelineOpts []usecase.PipelineOption

	// Mailbox source
	switch cfg.MailSource {
	case "gmail":
		gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GmailAccessToken, cfg.GmailRefreshToken).
			OnTokenRefresh(func(token *oauth2.Token) error {
				log.Printf("[Gmail] Access token refreshed, expires %s", token.Expiry.Format(time.RFC3339))
				return nil
			})
		pipelineOpts = append(pipelineOpts, usecase.WithMailboxSource("gmail", gmailService))
	case "imap":
		imapService := imap.NewService(imap.Config{
			Server:   cfg.IMAPServer,
			Port:     cfg.IMAPPort,
			Username: cfg.IMAPUsername,
			Password: cfg.IMAPPassword,
			Mailbox:  cfg.IMAPMailbox,
		})
		pipelineOpts = append(pipelineOpts, usecase.WithMailboxSource("imap", imapService))
	default:
		log.Printf("[WARN] MAIL_SOURCE not configured, only manual submissions are available")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Urgent alerts: Pub/Sub topic and optional FCM on-call devices
	var notifService *notification.Service
	if cfg.GoogleProjectID != "" {
		notifService, err = notification.NewService(ctx, cfg.GoogleProjectID, cfg.GooglePubSubTopic, cfg.GoogleCredentials)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
			notifService = nil
		}
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, Pub/Sub alerts disabled")
	}

	if cfg.FirebaseCredentials != "" && len(cfg.FCMDeviceTokens) > 0 {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push alerts disabled): %v", err)
		} else {
			if notifService == nil {
				notifService = notification.NewServiceWithClient(nil, "")
			}
			notifService.WithDeviceAlerts(fcmClient, cfg.FCMDeviceTokens)
		}
	}
	if notifService != nil {
		pipelineOpts = append(pipelineOpts, usecase.WithAlertPublisher(notifService))
		defer notifService.Close()
	}

	// Initialize use cases (dependency injection)
	pipeline := usecase.NewPipeline(classifier, triageRepo, queue.NewPriorityQueue(), pipelineOpts...)

	// Background processing
	workers := usecase.NewProcessWorkerService(pipeline, cfg.WorkerCount, 500)
	workers.Start()

	fetchScheduler := scheduler.NewFetchScheduler(pipeline, workers, cfg.FetchInterval, fetchOpts)
	if pipeline.SourceName() != "none" {
		fetchScheduler.Start()
	}

	// Gmail push notifications trigger an immediate fetch
	if notifService != nil && cfg.MailSource == "gmail" && cfg.GmailPushSubscription != "" {
		notifService.OnMailboxUpdate(func(ctx context.Context, emailAddress string) {
			messages, err := pipeline.FetchMessages(ctx, fetchOpts)
			if err != nil {
				log.Printf("[PubSub] Fetch after push for %s failed: %v", emailAddress, err)
				return
			}
			queued := workers.QueueMessages(messages)
			log.Printf("[PubSub] Queued %d messages after push for %s", queued, emailAddress)
		})
		go notifService.Listen(ctx, cfg.GmailPushSubscription)
	}

	// Initialize HTTP handler
	handler := api.NewHandler(pipeline, ollamaSettings)

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := handler.Start(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] HTTP shutdown: %v", err)
	}

	cancel()
	if pipeline.SourceName() != "none" {
		fetchScheduler.Stop()
	}
	workers.Stop()
	log.Println("Server stopped")
}
