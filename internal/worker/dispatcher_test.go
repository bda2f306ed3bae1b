package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/blastline/campaign-dispatch/internal/events"
	"github.com/blastline/campaign-dispatch/internal/gateway"
	"github.com/blastline/campaign-dispatch/internal/models"
)

// Mock repositories for testing

type mockContactRepo struct {
	marked  []int64
	markErr error
}

func (m *mockContactRepo) List(ctx context.Context, userID int64) ([]*models.Contact, error) {
	return nil, nil
}
func (m *mockContactRepo) ListNeverMessaged(ctx context.Context, userID int64) ([]*models.Contact, error) {
	return nil, nil
}
func (m *mockContactRepo) GetByIDs(ctx context.Context, userID int64, ids []int64) ([]*models.Contact, error) {
	return nil, nil
}
func (m *mockContactRepo) MarkMessaged(ctx context.Context, contactID int64, sentAt time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.marked = append(m.marked, contactID)
	return nil
}

type mockDeliveryRepo struct {
	records map[int64]*models.DeliveryRecord
	sentErr error
}

func (m *mockDeliveryRepo) CreateBatch(ctx context.Context, records []*models.DeliveryRecord) error {
	return nil
}
func (m *mockDeliveryRepo) MarkSent(ctx context.Context, id int64, externalID string) error {
	if m.sentErr != nil {
		return m.sentErr
	}
	record, ok := m.records[id]
	if !ok || record.Status != models.DeliveryStatusPending {
		return models.ErrConflictWithMsg("record not settleable")
	}
	record.Status = models.DeliveryStatusSent
	record.ExternalID = &externalID
	return nil
}
func (m *mockDeliveryRepo) MarkFailed(ctx context.Context, id int64, errorReason string) error {
	record, ok := m.records[id]
	if !ok || record.Status != models.DeliveryStatusPending {
		return models.ErrConflictWithMsg("record not settleable")
	}
	record.Status = models.DeliveryStatusFailed
	record.ErrorReason = &errorReason
	return nil
}
func (m *mockDeliveryRepo) ListByCampaign(ctx context.Context, campaignID int64, limit int) ([]*models.DeliveryRecord, error) {
	return nil, nil
}

type mockCampaignRepo struct {
	finalStatus string
	countsCalls int
}

func (m *mockCampaignRepo) Create(ctx context.Context, campaign *models.Campaign) error { return nil }
func (m *mockCampaignRepo) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	return nil, models.ErrNotFoundWithMsg("campaign not found")
}
func (m *mockCampaignRepo) MarkStarted(ctx context.Context, id int64, startedAt time.Time) error {
	return nil
}
func (m *mockCampaignRepo) UpdateCounts(ctx context.Context, id int64, sent, failed, pendingRemaining int64) error {
	m.countsCalls++
	return nil
}
func (m *mockCampaignRepo) Finish(ctx context.Context, id int64, status string, completedAt time.Time) error {
	if models.IsTerminalCampaignStatus(m.finalStatus) {
		return models.ErrConflictWithMsg("campaign already terminal")
	}
	m.finalStatus = status
	return nil
}

// scriptedGateway returns canned results per call and can run a hook inside
// each send (while the send is "in flight")
type scriptedGateway struct {
	results []gateway.Result
	calls   int
	onSend  func(call int)
}

func (g *scriptedGateway) Send(ctx context.Context, phone, text string, media []models.MediaAttachment) gateway.Result {
	call := g.calls
	g.calls++
	if g.onSend != nil {
		g.onSend(call)
	}
	if call < len(g.results) {
		return g.results[call]
	}
	return gateway.Result{Success: true, ExternalMessageID: fmt.Sprintf("ext-%d", call)}
}

// passthroughRenderer returns the template unchanged
type passthroughRenderer struct{}

func (passthroughRenderer) Render(template string, contact *models.Contact) string { return template }

type fixture struct {
	contacts   *mockContactRepo
	deliveries *mockDeliveryRepo
	campaigns  *mockCampaignRepo
	gateway    *scriptedGateway
	tracker    *Tracker
	registry   *Registry
	dispatcher *Dispatcher
	campaign   *models.Campaign
	contactSet []*models.Contact
	records    []*models.DeliveryRecord
}

func newFixture(t *testing.T, contactCount, delaySeconds int) *fixture {
	t.Helper()

	f := &fixture{
		contacts:   &mockContactRepo{},
		deliveries: &mockDeliveryRepo{records: map[int64]*models.DeliveryRecord{}},
		campaigns:  &mockCampaignRepo{},
		gateway:    &scriptedGateway{},
		tracker:    NewTracker(),
		registry:   NewRegistry(),
	}

	f.campaign = &models.Campaign{
		ID:            1,
		UserID:        10,
		Template:      "Hi {name}!",
		SelectionMode: models.SelectionAll,
		DelaySeconds:  delaySeconds,
		Status:        models.CampaignStatusInProgress,
		Total:         int64(contactCount),
	}

	for i := 0; i < contactCount; i++ {
		id := int64(i + 1)
		f.contactSet = append(f.contactSet, &models.Contact{
			ID:     id,
			UserID: 10,
			Name:   fmt.Sprintf("Contact %d", id),
			Phone:  fmt.Sprintf("+25471234500%d", id),
		})
		record := &models.DeliveryRecord{
			ID:         100 + id,
			CampaignID: 1,
			ContactID:  id,
			Status:     models.DeliveryStatusPending,
		}
		f.records = append(f.records, record)
		stored := *record
		f.deliveries.records[record.ID] = &stored
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	f.dispatcher = NewDispatcher(
		f.contacts,
		f.deliveries,
		f.campaigns,
		f.gateway,
		passthroughRenderer{},
		f.tracker,
		f.registry,
		events.NewNoopPublisher(),
		logger,
	)

	if err := f.registry.Acquire(f.campaign.ID); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	f.tracker.Begin(f.campaign.ID, f.campaign.Total, time.Now().UTC())

	return f
}

func TestDispatcher_Run_AllSucceed(t *testing.T) {
	f := newFixture(t, 3, 0)

	f.dispatcher.Run(context.Background(), f.campaign, f.contactSet, f.records)

	snap, _ := f.tracker.Snapshot(1)
	if snap.Status != models.CampaignStatusCompleted {
		t.Errorf("Status = %s, want completed", snap.Status)
	}
	if snap.Sent != 3 || snap.Failed != 0 || snap.PendingRemaining != 0 {
		t.Errorf("counts = %d/%d/%d, want 3/0/0", snap.Sent, snap.Failed, snap.PendingRemaining)
	}
	if f.campaigns.finalStatus != models.CampaignStatusCompleted {
		t.Errorf("persisted status = %s, want completed", f.campaigns.finalStatus)
	}

	// Every delivery record settled as sent with an external id
	for _, record := range f.records {
		if record.Status != models.DeliveryStatusSent {
			t.Errorf("record %d status = %s, want sent", record.ID, record.Status)
		}
		if record.ExternalID == nil {
			t.Errorf("record %d missing external id", record.ID)
		}
	}

	// Every contact marked messaged, in order
	if len(f.contacts.marked) != 3 {
		t.Fatalf("marked %d contacts, want 3", len(f.contacts.marked))
	}
	for i, id := range f.contacts.marked {
		if id != int64(i+1) {
			t.Errorf("marked[%d] = %d, want %d", i, id, i+1)
		}
	}

	if f.registry.Running(1) {
		t.Error("registry slot not released after run")
	}
}

func TestDispatcher_Run_OneFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t, 3, 0)
	f.gateway.results = []gateway.Result{
		{Success: true, ExternalMessageID: "ext-0"},
		{Success: false, ErrorReason: "number not on whatsapp"},
		{Success: true, ExternalMessageID: "ext-2"},
	}

	f.dispatcher.Run(context.Background(), f.campaign, f.contactSet, f.records)

	snap, _ := f.tracker.Snapshot(1)
	if snap.Status != models.CampaignStatusCompleted {
		t.Errorf("Status = %s, want completed", snap.Status)
	}
	if snap.Sent != 2 || snap.Failed != 1 || snap.PendingRemaining != 0 {
		t.Errorf("counts = %d/%d/%d, want 2/1/0", snap.Sent, snap.Failed, snap.PendingRemaining)
	}

	// The failed record carries the gateway's reason
	failed := f.records[1]
	if failed.Status != models.DeliveryStatusFailed {
		t.Fatalf("record 2 status = %s, want failed", failed.Status)
	}
	if failed.ErrorReason == nil || *failed.ErrorReason != "number not on whatsapp" {
		t.Errorf("record 2 error reason = %v, want gateway reason", failed.ErrorReason)
	}

	// The failed contact was not marked messaged
	for _, id := range f.contacts.marked {
		if id == 2 {
			t.Error("failed contact marked messaged")
		}
	}
}

func TestDispatcher_Run_CancelBetweenContacts(t *testing.T) {
	f := newFixture(t, 5, 0)

	// Request cancellation while the first send is in flight: that send
	// still settles, the loop stops before the second.
	f.gateway.onSend = func(call int) {
		if call == 0 {
			f.tracker.RequestCancel(1)
		}
	}

	f.dispatcher.Run(context.Background(), f.campaign, f.contactSet, f.records)

	snap, _ := f.tracker.Snapshot(1)
	if snap.Status != models.CampaignStatusCancelled {
		t.Errorf("Status = %s, want cancelled", snap.Status)
	}
	if snap.Sent+snap.Failed != 1 {
		t.Errorf("settled = %d, want 1", snap.Sent+snap.Failed)
	}
	if snap.PendingRemaining != 4 {
		t.Errorf("PendingRemaining = %d, want 4", snap.PendingRemaining)
	}
	if f.gateway.calls != 1 {
		t.Errorf("gateway calls = %d, want 1", f.gateway.calls)
	}

	// Unprocessed records stay pending
	for _, record := range f.records[1:] {
		if record.Status != models.DeliveryStatusPending {
			t.Errorf("record %d status = %s, want pending", record.ID, record.Status)
		}
	}

	if f.campaigns.finalStatus != models.CampaignStatusCancelled {
		t.Errorf("persisted status = %s, want cancelled", f.campaigns.finalStatus)
	}
}

func TestDispatcher_Run_RepositoryErrorIsFatal(t *testing.T) {
	f := newFixture(t, 3, 0)

	// First contact settles fine, then the delivery store goes away.
	settled := false
	f.gateway.onSend = func(call int) {
		if call == 1 && !settled {
			settled = true
			f.deliveries.sentErr = errors.New("connection refused")
		}
	}

	f.dispatcher.Run(context.Background(), f.campaign, f.contactSet, f.records)

	snap, _ := f.tracker.Snapshot(1)
	if snap.Status != models.CampaignStatusFailed {
		t.Errorf("Status = %s, want failed", snap.Status)
	}
	if f.gateway.calls != 2 {
		t.Errorf("gateway calls = %d, want 2 (loop must stop on storage fault)", f.gateway.calls)
	}
	if snap.Sent != 1 {
		t.Errorf("Sent = %d, want 1 (first outcome preserved)", snap.Sent)
	}
	if f.campaigns.finalStatus != models.CampaignStatusFailed {
		t.Errorf("persisted status = %s, want failed", f.campaigns.finalStatus)
	}
}

func TestDispatcher_Run_MarkMessagedErrorIsFatal(t *testing.T) {
	f := newFixture(t, 2, 0)
	f.contacts.markErr = errors.New("connection refused")

	f.dispatcher.Run(context.Background(), f.campaign, f.contactSet, f.records)

	snap, _ := f.tracker.Snapshot(1)
	if snap.Status != models.CampaignStatusFailed {
		t.Errorf("Status = %s, want failed", snap.Status)
	}
	if f.gateway.calls != 1 {
		t.Errorf("gateway calls = %d, want 1", f.gateway.calls)
	}
}

func TestDispatcher_Run_PacingSkipsTrailingDelay(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	f := newFixture(t, 2, 1)

	start := time.Now()
	f.dispatcher.Run(context.Background(), f.campaign, f.contactSet, f.records)
	elapsed := time.Since(start)

	// One delay between the two sends, none after the last.
	if elapsed < 900*time.Millisecond {
		t.Errorf("elapsed = %v, want at least ~1s of pacing", elapsed)
	}
	if elapsed > 1900*time.Millisecond {
		t.Errorf("elapsed = %v, trailing delay should be skipped", elapsed)
	}

	snap, _ := f.tracker.Snapshot(1)
	if snap.Status != models.CampaignStatusCompleted {
		t.Errorf("Status = %s, want completed", snap.Status)
	}
}

func TestDispatcher_Run_CancelDuringDelayStopsNextSend(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	f := newFixture(t, 2, 1)

	// The first send fires immediately; the cancel lands while the loop
	// waits out the inter-message delay. Message #2 must not go out.
	go func() {
		time.Sleep(300 * time.Millisecond)
		f.tracker.RequestCancel(1)
	}()

	f.dispatcher.Run(context.Background(), f.campaign, f.contactSet, f.records)

	snap, _ := f.tracker.Snapshot(1)
	if snap.Status != models.CampaignStatusCancelled {
		t.Errorf("Status = %s, want cancelled", snap.Status)
	}
	if f.gateway.calls != 1 {
		t.Errorf("gateway calls = %d, want 1", f.gateway.calls)
	}
	if snap.Sent+snap.Failed != 1 {
		t.Errorf("settled = %d, want 1", snap.Sent+snap.Failed)
	}
	if snap.PendingRemaining != 1 {
		t.Errorf("PendingRemaining = %d, want 1", snap.PendingRemaining)
	}
	if f.records[1].Status != models.DeliveryStatusPending {
		t.Errorf("record 2 status = %s, want pending", f.records[1].Status)
	}
	if f.campaigns.finalStatus != models.CampaignStatusCancelled {
		t.Errorf("persisted status = %s, want cancelled", f.campaigns.finalStatus)
	}
}

func TestDispatcher_Run_ShutdownCancelsAtBoundary(t *testing.T) {
	f := newFixture(t, 3, 0)

	ctx, cancel := context.WithCancel(context.Background())
	f.gateway.onSend = func(call int) {
		if call == 0 {
			cancel()
		}
	}

	f.dispatcher.Run(ctx, f.campaign, f.contactSet, f.records)

	snap, _ := f.tracker.Snapshot(1)
	if snap.Status != models.CampaignStatusCancelled {
		t.Errorf("Status = %s, want cancelled", snap.Status)
	}
	if f.gateway.calls != 1 {
		t.Errorf("gateway calls = %d, want 1", f.gateway.calls)
	}
	// Terminal status persisted even though the run context is gone
	if f.campaigns.finalStatus != models.CampaignStatusCancelled {
		t.Errorf("persisted status = %s, want cancelled", f.campaigns.finalStatus)
	}
}
