package leads

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/memory"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

var t0 = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func TestUpsert_CreateThenEnrich(t *testing.T) {
	store := memory.New()
	now := t0
	e := NewEngine(store, func() time.Time { return now })
	ctx := context.Background()

	first, err := e.Upsert(ctx, Input{TenantID: 1, Email: " Ann@Example.com ", Name: "Ann", Topic: "pricing", VisitorID: "tok1"})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "ann@example.com", first.Lead.Email)
	assert.Equal(t, models.LeadNew, first.Lead.Status)
	assert.Equal(t, models.PriorityMedium, first.Lead.Priority)
	assert.Equal(t, models.SourceChatWidget, first.Lead.Source)
	assert.Equal(t, 1, first.Lead.VisitCount)
	assert.Equal(t, 1, first.Lead.ChatCount)
	assert.Contains(t, first.Lead.Notes, "pricing")

	now = t0.Add(time.Hour)
	second, err := e.Upsert(ctx, Input{TenantID: 1, Email: "ann@example.com", Name: "Annie", Phone: "555-0100"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Lead.ID, second.Lead.ID)
	assert.Equal(t, "Ann", second.Lead.Name, "name keeps first non-empty value")
	assert.Equal(t, "555-0100", second.Lead.Phone, "empty phone is filled")
	assert.Equal(t, 2, second.Lead.VisitCount)
	assert.Equal(t, 2, second.Lead.ChatCount)
	assert.Equal(t, now, second.Lead.LastVisit)
	assert.Contains(t, second.Lead.Notes, "First contact")
	assert.Contains(t, second.Lead.Notes, "Returning contact")

	assert.Len(t, store.Leads(1), 1)
}

func TestUpsert_FormSubmissionCounter(t *testing.T) {
	store := memory.New()
	e := NewEngine(store, nil)
	ctx := context.Background()

	res, err := e.Upsert(ctx, Input{TenantID: 2, Email: "bo@x.io", Source: models.SourceWebsiteForm})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Lead.FormSubmissions)
	assert.Equal(t, 0, res.Lead.ChatCount)

	res, err = e.Upsert(ctx, Input{TenantID: 2, Email: "bo@x.io"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Lead.FormSubmissions)
	assert.Equal(t, 1, res.Lead.ChatCount)
}

func TestUpsert_TenantScoped(t *testing.T) {
	store := memory.New()
	e := NewEngine(store, nil)
	ctx := context.Background()

	_, err := e.Upsert(ctx, Input{TenantID: 1, Email: "c@x.io"})
	require.NoError(t, err)
	res, err := e.Upsert(ctx, Input{TenantID: 2, Email: "c@x.io"})
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestUpsert_Validation(t *testing.T) {
	e := NewEngine(memory.New(), nil)
	_, err := e.Upsert(context.Background(), Input{TenantID: 0, Email: "a@b.c"})
	assert.ErrorIs(t, err, models.ErrInvalidTenant)
	_, err = e.Upsert(context.Background(), Input{TenantID: 1})
	assert.ErrorIs(t, err, ErrMissingContact)
}

func TestUpsert_NoEmailAlwaysCreates(t *testing.T) {
	store := memory.New()
	e := NewEngine(store, nil)
	ctx := context.Background()

	a, err := e.Upsert(ctx, Input{TenantID: 1, Phone: "555"})
	require.NoError(t, err)
	b, err := e.Upsert(ctx, Input{TenantID: 1, Phone: "555"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Lead.ID, b.Lead.ID)
	assert.NotEmpty(t, a.Lead.VisitorID)
}

// racingStore hides the first existing lead from FindLeadByEmail, as if a
// concurrent request created it between the lookup and the insert.
type racingStore struct {
	*memory.Store
	hidden bool
}

func (r *racingStore) FindLeadByEmail(ctx context.Context, tenantID int64, email string) (*models.Lead, error) {
	if !r.hidden {
		r.hidden = true
		return nil, models.ErrNotFound
	}
	return r.Store.FindLeadByEmail(ctx, tenantID, email)
}

func TestUpsert_ConflictBecomesUpdate(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	require.NoError(t, mem.CreateLead(ctx, &models.Lead{TenantID: 1, Email: "d@x.io", Name: "Dee", VisitCount: 1}))

	e := NewEngine(&racingStore{Store: mem}, nil)
	res, err := e.Upsert(ctx, Input{TenantID: 1, Email: "d@x.io", Name: "Other"})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 2, res.Lead.VisitCount)
	assert.Equal(t, "Dee", res.Lead.Name)
	assert.Len(t, mem.Leads(1), 1)
}
