package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/pkg/utils"
)

const sampleYAML = `
risk_profiles:
  moderate:
    safe_patterns: ["dca", "rebalance_preview"]
    category_risk:
      content: 35
    queue:
      max_pending: 10
      escalate_after: 2h
      auto_reject_after: 6h
  aggressive:
    weights:
      financial: 0.5
      reversibility: 0.2
      category: 0.1
      urgency: 0.1
      visibility: 0.1
    level_outcomes:
      medium: auto_execute
`

func TestDefault_IsValid(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	assert.InDelta(t, 1.0, p.Weights.Sum(), 1e-9)
	assert.Equal(t, 50, p.Queue.MaxPending)
	assert.Equal(t, 24*time.Hour, p.Queue.TTL)
	assert.Equal(t, 100, p.Rollback.MaxCheckpoints)
}

func TestDefault_ReturnsFreshMaps(t *testing.T) {
	a := Default()
	a.CategoryRisk[domain.CategoryTrading] = 99
	assert.Equal(t, 50.0, Default().CategoryRisk[domain.CategoryTrading])
}

func TestParse_MergesOverDefaults(t *testing.T) {
	p, err := Parse([]byte(sampleYAML), "")
	require.NoError(t, err)

	assert.Equal(t, "moderate", p.ProfileName)
	assert.Equal(t, []string{"dca", "rebalance_preview"}, p.SafePatterns)
	assert.Equal(t, 35.0, p.CategoryRisk[domain.CategoryContent])
	// untouched keys survive the merge
	assert.Equal(t, 50.0, p.CategoryRisk[domain.CategoryTrading])
	assert.Equal(t, 10, p.Queue.MaxPending)
	assert.Equal(t, 2*time.Hour, p.Queue.EscalateAfter)
	assert.Equal(t, 24*time.Hour, p.Queue.TTL)
	assert.Equal(t, Default().DangerousPatterns, p.DangerousPatterns)
}

func TestParse_SelectsProfile(t *testing.T) {
	p, err := Parse([]byte(sampleYAML), "aggressive")
	require.NoError(t, err)

	assert.Equal(t, "aggressive", p.ProfileName)
	assert.Equal(t, 0.5, p.Weights.Financial)
	assert.Equal(t, domain.OutcomeAutoExecute, p.LevelOutcomes[domain.RiskMedium])
	assert.Equal(t, domain.OutcomeEscalate, p.LevelOutcomes[domain.RiskCritical])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		profile string
		want    string
	}{
		{
			name:    "missing profile",
			yaml:    sampleYAML,
			profile: "conservative",
			want:    "policy profile conservative not found",
		},
		{
			name:    "bad yaml",
			yaml:    "risk_profiles: [",
			profile: "",
			want:    "parse policy yaml",
		},
		{
			name: "weights do not sum to one",
			yaml: `
risk_profiles:
  moderate:
    weights:
      financial: 0.9
`,
			want: "must sum to 1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), tt.profile)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	p := Default()
	p.Weights.Financial = 0.9
	p.LevelBands.Low = 10
	p.Queue.MaxPending = 0
	p.DangerousPatterns = append(p.DangerousPatterns, "deploy/[")
	delete(p.LevelOutcomes, domain.RiskHigh)

	err := p.Validate()

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "weights")
	assert.Contains(t, fields, "level_bands")
	assert.Contains(t, fields, "queue.max_pending")
	assert.Contains(t, fields, "level_outcomes[high]")
	assert.Contains(t, fields, "dangerous_patterns[8]")
}

func TestValidate_AutoRejectMustExceedEscalation(t *testing.T) {
	p := Default()
	p.Queue.AutoRejectAfter = p.Queue.EscalateAfter

	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auto_reject_after")
}

func TestLoadOrDefault(t *testing.T) {
	p, err := LoadOrDefault("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, p.ProfileName)

	_, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read policy file")
}

func TestStore(t *testing.T) {
	s := NewStore(nil)
	assert.Equal(t, DefaultProfile, s.Current().ProfileName)

	p := Default()
	p.ProfileName = "custom"
	s.Set(p)
	assert.Equal(t, "custom", s.Current().ProfileName)

	s.Set(nil)
	assert.Equal(t, "custom", s.Current().ProfileName)

	assert.Equal(t, DefaultProfile, Static{}.Current().ProfileName)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	initial, err := Load(path, "")
	require.NoError(t, err)
	store := NewStore(initial)

	w, err := NewWatcher(path, "", store, utils.Nop())
	require.NoError(t, err)

	reloaded := make(chan *Policy, 4)
	w.OnReload(func(p *Policy) { reloaded <- p })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// invalid content is ignored
	require.NoError(t, os.WriteFile(path, []byte("risk_profiles: ["), 0o644))

	updated := `
risk_profiles:
  moderate:
    queue:
      max_pending: 7
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		return store.Current().Queue.MaxPending == 7
	}, 5*time.Second, 20*time.Millisecond)

	select {
	case p := <-reloaded:
		assert.Equal(t, DefaultProfile, p.ProfileName)
	case <-time.After(time.Second):
		t.Fatal("reload callback not invoked")
	}
}
