package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/blastline/campaign-dispatch/internal/events"
	"github.com/blastline/campaign-dispatch/internal/gateway"
	"github.com/blastline/campaign-dispatch/internal/models"
	"github.com/blastline/campaign-dispatch/internal/repository"
)

// Renderer produces the personalized message text for one contact
type Renderer interface {
	Render(template string, contact *models.Contact) string
}

// Dispatcher runs the sequential dispatch loop for campaigns. One Run per
// campaign at a time; concurrent campaigns each get their own Run.
type Dispatcher struct {
	contactRepo  repository.ContactRepository
	deliveryRepo repository.DeliveryRepository
	campaignRepo repository.CampaignRepository
	gateway      gateway.Client
	renderer     Renderer
	tracker      *Tracker
	registry     *Registry
	publisher    events.Publisher
	logger       *slog.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(
	contactRepo repository.ContactRepository,
	deliveryRepo repository.DeliveryRepository,
	campaignRepo repository.CampaignRepository,
	gatewayClient gateway.Client,
	renderer Renderer,
	tracker *Tracker,
	registry *Registry,
	publisher events.Publisher,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		contactRepo:  contactRepo,
		deliveryRepo: deliveryRepo,
		campaignRepo: campaignRepo,
		gateway:      gatewayClient,
		renderer:     renderer,
		tracker:      tracker,
		registry:     registry,
		publisher:    publisher,
		logger:       logger,
	}
}

// Run drives one campaign to completion, cancellation or failure. Contacts
// and records are parallel slices: records[i] is the pending ledger entry
// for contacts[i]. Run owns the campaign's registry slot and releases it on
// exit.
func (d *Dispatcher) Run(ctx context.Context, campaign *models.Campaign, contacts []*models.Contact, records []*models.DeliveryRecord) {
	defer d.registry.Release(campaign.ID)

	log := d.logger.With(
		slog.Int64("campaign_id", campaign.ID),
		slog.Int64("user_id", campaign.UserID),
	)

	log.Info("dispatch started",
		slog.Int("contacts", len(contacts)),
		slog.Int("delay_seconds", campaign.DelaySeconds),
	)

	// The limiter is the pacing suspension point. Burst 1 lets the first
	// send go immediately, every later send waits out the delay, and no
	// delay trails the final send.
	var limiter *rate.Limiter
	if campaign.DelaySeconds > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(campaign.DelaySeconds)*time.Second), 1)
	}

	for i, contact := range contacts {
		// Cancellation is cooperative and checked once per iteration;
		// a send already in flight always settles before we stop.
		if d.tracker.CancelRequested(campaign.ID) || ctx.Err() != nil {
			d.finish(ctx, campaign.ID, models.CampaignStatusCancelled, log)
			log.Info("dispatch cancelled", slog.Int("processed", i))
			return
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				d.finish(ctx, campaign.ID, models.CampaignStatusCancelled, log)
				log.Info("dispatch cancelled during pacing", slog.Int("processed", i))
				return
			}
			// A cancel requested while the loop sat out the delay must
			// stop the next send, not the one after it.
			if d.tracker.CancelRequested(campaign.ID) || ctx.Err() != nil {
				d.finish(ctx, campaign.ID, models.CampaignStatusCancelled, log)
				log.Info("dispatch cancelled during pacing", slog.Int("processed", i))
				return
			}
		}

		text := d.renderer.Render(campaign.Template, contact)
		result := d.gateway.Send(ctx, contact.Phone, text, campaign.Media)

		var err error
		if result.Success {
			err = d.settleSent(ctx, campaign.ID, contact, records[i], result.ExternalMessageID, log)
		} else {
			err = d.settleFailed(ctx, campaign.ID, contact, records[i], result.ErrorReason, log)
		}

		// A storage fault is not a per-recipient condition: it aborts
		// the whole loop.
		if err != nil {
			log.Error("dispatch aborted by repository error",
				slog.Int64("contact_id", contact.ID),
				slog.String("error", err.Error()),
			)
			d.finish(ctx, campaign.ID, models.CampaignStatusFailed, log)
			return
		}
	}

	d.finish(ctx, campaign.ID, models.CampaignStatusCompleted, log)
	log.Info("dispatch completed")
}

// settleSent records a successful send: ledger entry, contact timestamp,
// live counters, persisted counters, delivery event.
func (d *Dispatcher) settleSent(ctx context.Context, campaignID int64, contact *models.Contact, record *models.DeliveryRecord, externalID string, log *slog.Logger) error {
	now := time.Now().UTC()

	if err := d.deliveryRepo.MarkSent(ctx, record.ID, externalID); err != nil {
		return err
	}
	ext := externalID
	if err := record.Settle(models.DeliveryStatusSent, &ext, nil); err != nil {
		return err
	}
	if err := d.contactRepo.MarkMessaged(ctx, contact.ID, now); err != nil {
		return err
	}

	d.tracker.RecordSent(campaignID)
	if err := d.persistCounts(ctx, campaignID); err != nil {
		return err
	}

	log.Info("message sent",
		slog.Int64("contact_id", contact.ID),
		slog.String("phone", contact.Phone),
		slog.String("external_id", externalID),
	)

	d.publish(ctx, &events.DeliveryEvent{
		CampaignID: campaignID,
		ContactID:  contact.ID,
		Status:     models.DeliveryStatusSent,
		ExternalID: externalID,
		OccurredAt: now,
	})

	return nil
}

// settleFailed records a failed send. The failure itself never aborts the
// loop; only a repository error does.
func (d *Dispatcher) settleFailed(ctx context.Context, campaignID int64, contact *models.Contact, record *models.DeliveryRecord, reason string, log *slog.Logger) error {
	now := time.Now().UTC()

	if err := d.deliveryRepo.MarkFailed(ctx, record.ID, reason); err != nil {
		return err
	}
	why := reason
	if err := record.Settle(models.DeliveryStatusFailed, nil, &why); err != nil {
		return err
	}

	d.tracker.RecordFailed(campaignID)
	if err := d.persistCounts(ctx, campaignID); err != nil {
		return err
	}

	log.Warn("message failed",
		slog.Int64("contact_id", contact.ID),
		slog.String("phone", contact.Phone),
		slog.String("error", reason),
	)

	d.publish(ctx, &events.DeliveryEvent{
		CampaignID:  campaignID,
		ContactID:   contact.ID,
		Status:      models.DeliveryStatusFailed,
		ErrorReason: reason,
		OccurredAt:  now,
	})

	return nil
}

func (d *Dispatcher) persistCounts(ctx context.Context, campaignID int64) error {
	snap, ok := d.tracker.Snapshot(campaignID)
	if !ok {
		return nil
	}
	return d.campaignRepo.UpdateCounts(ctx, campaignID, snap.Sent, snap.Failed, snap.PendingRemaining)
}

// finish writes the terminal status into the tracker and the store. The
// store write is best-effort with a detached context so shutdown does not
// lose the terminal status.
func (d *Dispatcher) finish(ctx context.Context, campaignID int64, status string, log *slog.Logger) {
	now := time.Now().UTC()
	d.tracker.Finish(campaignID, status, now)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := d.campaignRepo.Finish(writeCtx, campaignID, status, now); err != nil {
		log.Error("failed to persist terminal campaign status",
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Dispatcher) publish(ctx context.Context, event *events.DeliveryEvent) {
	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Warn("failed to publish delivery event",
			slog.Int64("campaign_id", event.CampaignID),
			slog.String("error", err.Error()),
		)
	}
}
