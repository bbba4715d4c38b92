package audit

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instaprofiler/internal/igtest"
	"instaprofiler/pkg/checkpoint"
	errs "instaprofiler/pkg/errors"
	"instaprofiler/pkg/models"
)

func resultNames(r *GroupReport) []string {
	var names []string
	for _, res := range r.Results {
		names = append(names, res.Account.Username)
	}
	return names
}

func TestGroupRunContinuesPastMissingAccounts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.account(alice, []models.User{bob}, []models.User{bob})
	h.account(dave, []models.User{carol}, nil)

	ghost := models.User{ID: "66", Username: "ghost"}
	require.NoError(t, h.store.AddGroupMembers(ctx, "friends", alice, dave, ghost))

	cp, err := checkpoint.NewManagerInDir(t.TempDir(), "friends", nil)
	require.NoError(t, err)

	var progress [][2]int
	opts := GroupOptions{OnResult: func(done, total int, _ *Result) {
		progress = append(progress, [2]int{done, total})
	}}
	report, err := NewGroupRunner(h.auditor, h.store, cp, h.log).Run(ctx, "friends", opts)
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
	require.Len(t, report.Results, 3)
	assert.Equal(t, StatusSuccess, report.Results[0].Status)
	assert.Equal(t, StatusSuccess, report.Results[1].Status)
	assert.Equal(t, StatusFailed, report.Results[2].Status)
	assert.ErrorIs(t, report.Results[2].Err, errs.ErrUserDoesNotExist)
	assert.True(t, report.Failed())
	assert.Equal(t, 2, report.Count(StatusSuccess))
	assert.False(t, cp.Exists(), "checkpoint is removed after a finished run")
	assert.Equal(t, 2, countRows(t, h.store, "users"))
}

func TestGroupRunOrdersByLastScrape(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.account(alice, []models.User{bob}, nil)
	h.account(dave, []models.User{bob}, nil)
	require.NoError(t, h.store.AddGroupMembers(ctx, "friends", alice, dave))

	// alice was scraped before, dave never was.
	_, err := h.auditor.Audit(ctx, ByName("alice"), Options{})
	require.NoError(t, err)

	report, err := NewGroupRunner(h.auditor, h.store, nil, nil).Run(ctx, "friends", GroupOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"dave"}, resultNames(report))
	assert.False(t, report.Failed())
}

func TestGroupRunHaltsOnOtherErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.account(alice, []models.User{carol}, nil)
	h.account(bob, []models.User{carol}, nil)
	h.account(dave, []models.User{carol}, nil)
	h.srv.SetErrorResponse(igtest.ProfileKey("bob"), http.StatusInternalServerError)
	require.NoError(t, h.store.AddGroupMembers(ctx, "friends", alice, bob, dave))

	report, err := NewGroupRunner(h.auditor, h.store, nil, nil).Run(ctx, "friends", GroupOptions{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, errs.ErrUserDoesNotExist))

	assert.Equal(t, []string{"alice", ""}, resultNames(report))
	assert.Zero(t, h.srv.Requests(igtest.ProfileKey("dave")))
}

func TestGroupRunResume(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.account(alice, []models.User{bob}, nil)
	h.account(dave, []models.User{bob}, nil)
	require.NoError(t, h.store.AddGroupMembers(ctx, "friends", alice, dave))

	cp, err := checkpoint.NewManagerInDir(t.TempDir(), "friends", nil)
	require.NoError(t, err)
	progress, err := cp.Create("friends")
	require.NoError(t, err)
	require.NoError(t, cp.RecordDone(progress, alice.ID, string(StatusSuccess)))

	report, err := NewGroupRunner(h.auditor, h.store, cp, nil).Run(ctx, "friends", GroupOptions{Resume: true})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []string{"dave"}, resultNames(report))
	assert.Zero(t, h.srv.Requests(igtest.ProfileKey("alice")))
}
