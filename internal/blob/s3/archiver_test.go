package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truthpool/internal/domain"
	"github.com/alanyoungcy/truthpool/internal/store/memory"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: make(map[string][]byte)}
}

func (b *fakeBucket) Put(_ context.Context, path string, data io.Reader, _ string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = body
	b.puts++
	return nil
}

func (b *fakeBucket) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	body, ok := b.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (b *fakeBucket) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.BlobInfo
	for p, body := range b.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(body))})
		}
	}
	return out, nil
}

func (b *fakeBucket) Exists(_ context.Context, path string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[path]
	return ok, nil
}

func TestArchiveSettlement(t *testing.T) {
	ctx := context.Background()
	markets := memory.NewMarketStore()
	audit := memory.NewAuditStore()
	bucket := newFakeBucket()
	a := NewArchiver(bucket, bucket, markets, memory.NewSubmissionStore(), audit, "ecies")

	m, err := markets.Create(ctx, domain.Market{Description: "rain?", ResolutionTime: 10})
	require.NoError(t, err)
	_, err = markets.AddStake(ctx, m.ID, "alice", domain.SideYes, 1)
	require.NoError(t, err)
	_, err = markets.AddStake(ctx, m.ID, "bob", domain.SideYes, 2)
	require.NoError(t, err)
	_, err = markets.AddStake(ctx, m.ID, "carol", domain.SideNo, 7)
	require.NoError(t, err)

	_, err = a.ArchiveSettlement(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrMarketNotResolved)

	_, err = markets.Resolve(ctx, m.ID, true, time.Now())
	require.NoError(t, err)

	path, err := a.ArchiveSettlement(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "settlements/market-0.json", path)

	var report SettlementReport
	require.NoError(t, json.Unmarshal(bucket.objects[path], &report))
	require.Len(t, report.Bets, 3)
	var sum uint64
	for _, b := range report.Bets {
		sum += b.Entitled
	}
	assert.EqualValues(t, 10, sum)
	assert.EqualValues(t, 3, report.Bets[0].Entitled)
	assert.EqualValues(t, 7, report.Bets[1].Entitled)
	assert.Zero(t, report.Bets[2].Entitled)
	assert.Contains(t, bucket.objects, "settlements/market-0.jsonl")

	puts := bucket.puts
	_, err = a.ArchiveSettlement(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, puts, bucket.puts, "existing report is not rewritten")

	entries, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "archive.settlement", entries[0].Event)
}

func TestArchiveEvidence(t *testing.T) {
	ctx := context.Background()
	subs := memory.NewSubmissionStore()
	bucket := newFakeBucket()
	a := NewArchiver(bucket, bucket, memory.NewMarketStore(), subs, memory.NewAuditStore(), "xor")

	sub, err := subs.Create(ctx, domain.Submission{EncryptedContent: "0xabcd", Conditions: []string{"after trial"}})
	require.NoError(t, err)

	_, err = a.ArchiveEvidence(ctx, sub.ID)
	assert.ErrorIs(t, err, domain.ErrNotRevealed)
	_, err = a.ArchiveEvidence(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = subs.MarkRevealed(ctx, sub.ID, time.Now())
	require.NoError(t, err)

	path, err := a.ArchiveEvidence(ctx, sub.ID)
	require.NoError(t, err)

	var bundle EvidenceBundle
	require.NoError(t, json.Unmarshal(bucket.objects[path], &bundle))
	assert.Equal(t, "0xabcd", bundle.Submission.EncryptedContent)
	assert.Equal(t, "xor", bundle.Scheme)
	assert.True(t, bundle.Submission.Revealed)
}
