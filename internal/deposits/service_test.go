package deposits

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starlightdeck/careon/internal/filestore"
	"github.com/starlightdeck/careon/internal/ledger"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	logg := logger.Nop()
	repo, err := NewRepository(filestore.New(logg), filepath.Join(t.TempDir(), "codes_ledger.json"), logg, nil)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Format: ledger.CodeFormat{Prefix: "DEP", SuffixLength: 8},
		Logger: logg,
		Clock:  func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc, repo
}

func TestMintThenRedeemExactlyOnce(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	code, err := svc.Mint(ctx, 50, "admin", "")
	require.NoError(t, err)
	assert.Regexp(t, `^DEP-[A-Z0-9]{8}$`, code)

	value, err := svc.Redeem(ctx, " "+strings.ToLower(code)+" ", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(50), value)

	_, err = svc.Redeem(ctx, code, "bob")
	require.ErrorIs(t, err, ledger.ErrAlreadyRedeemed)

	l, err := repo.Load(ctx)
	require.NoError(t, err)
	entry := l.Codes[code]
	require.NotNil(t, entry.RedeemedBy)
	assert.Equal(t, "bob", *entry.RedeemedBy)
	require.Len(t, l.History, 2)
}

func TestRedeemRejectsUnknownAndMalformedCodes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Redeem(ctx, "DEP-NOPE0000", "bob")
	assert.ErrorIs(t, err, ledger.ErrCodeNotFound)

	for _, code := range []string{"", "   ", "XYZ-12345678", "DEP-"} {
		_, err := svc.Redeem(ctx, code, "bob")
		assert.ErrorIs(t, err, ledger.ErrInvalidCode, "code %q", code)
	}
}

func TestMintRejectsNonPositiveValue(t *testing.T) {
	svc, repo := newTestService(t)
	_, err := svc.Mint(context.Background(), 0, "admin", "")
	require.ErrorIs(t, err, ledger.ErrInvalidValue)
	_, statErr := os.Stat(repo.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestRedeemWithApplyFailureKeepsCodeUnredeemed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	code, err := svc.Mint(ctx, 100, "admin", "")
	require.NoError(t, err)

	bankDown := errors.New("bank save failed")
	_, err = svc.RedeemWith(ctx, code, "bob", func(context.Context, string, int64) error { return bankDown })
	require.ErrorIs(t, err, bankDown)

	var applied int64
	value, err := svc.RedeemWith(ctx, code, "bob", func(_ context.Context, got string, v int64) error {
		assert.Equal(t, code, got)
		applied = v
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), value)
	assert.Equal(t, int64(100), applied)
}

func TestRecentEventsAndOutstanding(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	first, err := svc.Mint(ctx, 25, "admin", "")
	require.NoError(t, err)
	_, err = svc.Mint(ctx, 250, "admin", "community reward")
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, first, "web")
	require.NoError(t, err)

	out, err := svc.Outstanding(ctx)
	require.NoError(t, err)
	assert.Equal(t, Outstanding{Count: 1, Value: 250}, out)

	events, err := svc.RecentEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "mint", string(events[0].Type))
	assert.Equal(t, "redeem", string(events[1].Type))
	assert.Equal(t, first, events[1].Code)

	none, err := svc.RecentEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRedeemAcceptsLegacyCodes(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	legacy := `{"codes":{"DEP-50-A1B2C3":{"amount":50,"created_ts":"2024-01-02T03:04:05Z"}}}`
	require.NoError(t, os.WriteFile(repo.Path(), []byte(legacy), 0o644))

	value, err := svc.Redeem(ctx, "dep-50-a1b2c3", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(50), value)
}

func TestRepositoryWarnsOnlyWhenFilesAreUnusable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "codes_ledger.json")
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: "json"})
	repo, err := NewRepository(filestore.New(nil), path, logg, nil)
	require.NoError(t, err)

	l, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, l.Codes)
	assert.Empty(t, buf.String())

	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
	_, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "code ledger recovered from fallback")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "DEP-******C3", Mask("DEP-A1B2C3C3"))
	assert.Equal(t, "***", Mask("abc"))
}
