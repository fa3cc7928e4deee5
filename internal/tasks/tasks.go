package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/MOULOUNDOU/digicode-immo/internal/config"
	"github.com/MOULOUNDOU/digicode-immo/internal/email"
	"github.com/MOULOUNDOU/digicode-immo/internal/services"
	"github.com/MOULOUNDOU/digicode-immo/internal/storage"
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

// Task types routed through Asynq.
const (
	TypeEmailDelivery   = "email:deliver"
	TypeImageProcess    = "image:process"
	TypeListingSweep    = "listing:sweep"
	TypeSnapshotRefresh = "search:snapshot:refresh"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg            *config.Config
	emailSender    email.Sender
	storageService storage.IS3Storage
	listingService services.IListingService
	enquiryService services.IEnquiryService
	profileService services.IProfileService
	searchService  services.ISearchService
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	listingService services.IListingService,
	enquiryService services.IEnquiryService,
	profileService services.IProfileService,
	searchService services.ISearchService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		emailSender:    emailSender,
		storageService: storageService,
		listingService: listingService,
		enquiryService: enquiryService,
		profileService: profileService,
		searchService:  searchService,
	}
}

// SetupServer configures an Asynq server and its handler mux. Handler
// registration depends on the worker mode: the image worker only
// processes the dedicated images queue. The caller runs the server;
// shutdown goes through srv.Shutdown(). Returns nil when the mode
// registers no handlers.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypeListingSweep, processor.HandleListingSweepTask)
		mux.HandleFunc(TypeSnapshotRefresh, processor.HandleSnapshotRefreshTask)
		log.Println("Registered background task handlers.")
	}

	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Println("Registered image processing task handlers.")
	}

	if !isBgWorker && !isImageWorker {
		log.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	return srv, mux
}

// --- Task Handlers ---

// EmailTaskPayload carries one outgoing email. When EnquiryID is set,
// successful delivery also marks that enquiry as sent.
type EmailTaskPayload struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	EnquiryID string `json:"enquiry_id,omitempty"`
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email task has no recipient: %w", asynq.SkipRetry)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	// Plain-text message with the essential headers.
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", payload.Subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(payload.Body)
	sb.WriteString("\r\n")

	if err := p.emailSender.Send(ctx, []string{payload.To}, payload.Subject, []byte(sb.String())); err != nil {
		log.Printf("Email delivery to %s failed: %v", payload.To, err)
		return err
	}

	if payload.EnquiryID != "" {
		enquiryID, err := utils.ParseSixID(payload.EnquiryID)
		if err != nil {
			return fmt.Errorf("invalid enquiry ID in payload: %w", asynq.SkipRetry)
		}
		if err := p.enquiryService.MarkEnquirySent(ctx, enquiryID); err != nil {
			// The email went out; do not redeliver it over a flag update.
			log.Printf("Failed to mark enquiry %s sent: %v", payload.EnquiryID, err)
		}
	}

	log.Printf("Email task processed: To=%s, Subject=%s", payload.To, payload.Subject)
	return nil
}

// ImageKind selects the processing profile for an uploaded image.
type ImageKind string

const (
	ImageKindAvatar       ImageKind = "avatar"
	ImageKindListingPhoto ImageKind = "listing_photo"
)

// ImageTaskPayload identifies an uploaded object to normalize. For
// listing photos the processed key is appended to the listing.
type ImageTaskPayload struct {
	S3Key     string    `json:"s3_key"`
	Kind      ImageKind `json:"kind"`
	UserID    string    `json:"user_id"`
	ListingID string    `json:"listing_id,omitempty"`
}

func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	var maxDim uint
	switch payload.Kind {
	case ImageKindAvatar:
		maxDim = uint(p.cfg.AvatarMaxDimension)
	case ImageKindListingPhoto:
		maxDim = uint(p.cfg.ListingPhotoMaxDimension)
	default:
		return fmt.Errorf("unknown image kind %q: %w", payload.Kind, asynq.SkipRetry)
	}

	log.Printf("Processing image task: S3Key=%s, Kind=%s", payload.S3Key, payload.Kind)

	imgData, err := p.storageService.GetObject(ctx, payload.S3Key)
	if err != nil {
		return fmt.Errorf("failed to download image from S3: %w", err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Deleting.", payload.S3Key, len(imgData), maxSizeBytes)
		if delErr := p.storageService.DeleteObject(ctx, payload.S3Key); delErr != nil {
			log.Printf("Failed to delete oversized object %s: %v", payload.S3Key, delErr)
		}
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for key %s: %v", payload.S3Key, err)
		if delErr := p.storageService.DeleteObject(ctx, payload.S3Key); delErr != nil {
			log.Printf("Failed to delete undecodable object %s: %v", payload.S3Key, delErr)
		}
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	processedData := imgData
	contentType := "image/" + format
	if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
		resizedImg := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized image: %w", err)
		}
		processedData = buf.Bytes()
		contentType = "image/jpeg"
		log.Printf("Resized image %s to %dx%d", payload.S3Key, resizedImg.Bounds().Dx(), resizedImg.Bounds().Dy())
	}

	if err := p.storageService.PutObject(ctx, payload.S3Key, contentType, processedData); err != nil {
		return fmt.Errorf("failed to upload processed image: %w", err)
	}

	if payload.Kind == ImageKindAvatar {
		userID, err := utils.ParseSixID(payload.UserID)
		if err != nil {
			return fmt.Errorf("invalid user ID in payload: %w", asynq.SkipRetry)
		}
		avatarURL := p.storageService.PublicURL(payload.S3Key)
		if err := p.profileService.UpdateFields(ctx, userID, map[string]interface{}{"avatar_url": avatarURL}); err != nil {
			return fmt.Errorf("failed to update profile with processed avatar: %w", err)
		}
	}

	if payload.Kind == ImageKindListingPhoto {
		listingID, err := utils.ParseSixID(payload.ListingID)
		if err != nil {
			return fmt.Errorf("invalid listing ID in payload: %w", asynq.SkipRetry)
		}
		ownerID, err := utils.ParseSixID(payload.UserID)
		if err != nil {
			return fmt.Errorf("invalid user ID in payload: %w", asynq.SkipRetry)
		}
		photoURL := p.storageService.PublicURL(payload.S3Key)
		if err := p.listingService.AddPhotoToListing(ctx, listingID, ownerID, photoURL); err != nil {
			if services.IsValidationError(err) {
				// Cap reached or listing gone; the object is orphaned.
				log.Printf("Dropping processed photo %s: %v", payload.S3Key, err)
				if delErr := p.storageService.DeleteObject(ctx, payload.S3Key); delErr != nil {
					log.Printf("Failed to delete orphaned photo %s: %v", payload.S3Key, delErr)
				}
				return fmt.Errorf("photo not attachable: %w", asynq.SkipRetry)
			}
			return fmt.Errorf("failed to update listing with processed image: %w", err)
		}
	}

	log.Printf("Image task processed: Key=%s, Kind=%s", payload.S3Key, payload.Kind)
	return nil
}

// ListingSweepPayload names the deleted user whose listings must go.
type ListingSweepPayload struct {
	UserID string `json:"user_id"`
}

// HandleListingSweepTask removes the listings orphaned by a user
// deletion. Runs asynchronously so the admin console responds fast.
func (p *TaskProcessor) HandleListingSweepTask(ctx context.Context, t *asynq.Task) error {
	var payload ListingSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal listing sweep payload: %v: %w", err, asynq.SkipRetry)
	}

	userID, err := utils.ParseSixID(payload.UserID)
	if err != nil {
		return fmt.Errorf("invalid user ID in sweep payload: %w", asynq.SkipRetry)
	}

	swept, err := p.listingService.DeleteListingsByOwner(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing sweep for user %s failed: %w", payload.UserID, err)
	}
	log.Printf("Listing sweep for user %s removed %d listings", payload.UserID, swept)
	return nil
}

// HandleSnapshotRefreshTask rebuilds the search fallback snapshot.
// Enqueued periodically by the scheduler in the background worker.
func (p *TaskProcessor) HandleSnapshotRefreshTask(ctx context.Context, t *asynq.Task) error {
	if err := p.searchService.RefreshSnapshot(ctx); err != nil {
		return fmt.Errorf("snapshot refresh failed: %w", err)
	}
	log.Println("Search snapshot refreshed.")
	return nil
}

// SetupScheduler returns a configured Asynq scheduler that periodically
// enqueues the snapshot refresh. The caller runs and shuts it down.
func SetupScheduler(rdb *redis.Client, cfg *config.Config) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     rdb.Options().Addr,
			Password: rdb.Options().Password,
			DB:       rdb.Options().DB,
		},
		&asynq.SchedulerOpts{},
	)

	interval := fmt.Sprintf("@every %s", cfg.SnapshotRefreshPeriod)
	if _, err := scheduler.Register(interval, asynq.NewTask(TypeSnapshotRefresh, nil)); err != nil {
		return nil, fmt.Errorf("failed to register snapshot refresh schedule: %w", err)
	}
	return scheduler, nil
}
