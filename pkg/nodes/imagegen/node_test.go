package imagegen

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/balance"
	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
)

type stubGenerator struct {
	url     string
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(_ context.Context, _ string, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)

	if s.err != nil {
		return "", s.err
	}

	return s.url, nil
}

func flatLedger(store balance.Store, cost int64) *ledger.Ledger {
	costs := ledger.NewCostRegistry()
	costs.RegisterFlat("default", cost)

	return ledger.NewLedger(store, costs, slog.Default())
}

func TestImageNodeChargesFlatCost(t *testing.T) {
	store := balance.NewMemoryStore()
	store.SetBalance("acct-1", balance.Balance{Renewable: 3, Permanent: 4})

	gen := &stubGenerator{url: "https://assets.example/img-1.png"}

	node, err := NewImageNode("img-1", map[string]any{
		"prompt": "a lighthouse at {{time_of_day}}",
	}, gen, flatLedger(store, 5))
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("exec-1", "wf-1", "sess-1", "acct-1", map[string]any{
		"time_of_day": "dusk",
	})

	result, err := node.Execute(context.Background(), execCtx)
	require.NoError(t, err)

	assert.Equal(t, "https://assets.example/img-1.png", result.Output["image_url"])
	assert.Equal(t, int64(5), result.Cost)
	require.Len(t, gen.prompts, 1)
	assert.Equal(t, "a lighthouse at dusk", gen.prompts[0])

	remaining, err := store.Balance(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, balance.Balance{Renewable: 0, Permanent: 2}, remaining)
}

func TestImageNodeRefundsOnProviderFailure(t *testing.T) {
	store := balance.NewMemoryStore()
	store.SetBalance("acct-1", balance.Balance{Renewable: 10, Permanent: 0})

	gen := &stubGenerator{err: errors.New("model overloaded")}

	node, err := NewImageNode("img-1", map[string]any{"prompt": "a lighthouse"}, gen, flatLedger(store, 5))
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("exec-1", "wf-1", "sess-1", "acct-1", nil)

	_, err = node.Execute(context.Background(), execCtx)
	require.Error(t, err)

	var capErr *protocol.CapabilityError

	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, models.NodeTypeImageGenerator, capErr.NodeType)

	remaining, err := store.Balance(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), remaining.Total())
}

func TestImageNodeInsufficientBalance(t *testing.T) {
	store := balance.NewMemoryStore()
	store.SetBalance("acct-1", balance.Balance{Renewable: 2, Permanent: 2})

	gen := &stubGenerator{url: "https://assets.example/img-1.png"}

	node, err := NewImageNode("img-1", map[string]any{"prompt": "a lighthouse"}, gen, flatLedger(store, 5))
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("exec-1", "wf-1", "sess-1", "acct-1", nil)

	_, err = node.Execute(context.Background(), execCtx)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.Empty(t, gen.prompts)
}

func TestNewImageNodeRequiresPrompt(t *testing.T) {
	_, err := NewImageNode("img-1", map[string]any{}, &stubGenerator{}, nil)
	require.ErrorIs(t, err, protocol.ErrInvalidNodeConfig)
}

func TestNewImageNodeRequiresProvider(t *testing.T) {
	_, err := NewImageNode("img-1", map[string]any{"prompt": "x"}, nil, nil)
	require.Error(t, err)
}
