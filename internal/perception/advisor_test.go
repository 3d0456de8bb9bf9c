package perception

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medtrack/internal/apperr"
	"medtrack/internal/config"
	"medtrack/internal/medication"
)

// fakeClient records prompts and answers from a function.
type fakeClient struct {
	mu      sync.Mutex
	prompts []string
	systems []string
	answer  func(prompt string) (string, error)
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *fakeClient) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.systems = append(f.systems, system)
	f.mu.Unlock()
	return f.answer(prompt)
}

func TestAdvisor_Prompts(t *testing.T) {
	fc := &fakeClient{answer: func(string) (string, error) { return "  ok \n", nil }}
	a := NewAdvisor(fc)
	ctx := context.Background()

	info, err := a.FetchInfo(ctx, "Aspirin")
	require.NoError(t, err)
	assert.Equal(t, "  ok \n", info)

	desc, err := a.FetchDescription(ctx, "Aspirin")
	require.NoError(t, err)
	assert.Equal(t, "ok", desc)

	_, err = a.Chat(ctx, "Aspirin (81mg, Once daily)", "Can I take it with food?")
	require.NoError(t, err)

	require.Len(t, fc.prompts, 3)
	assert.Equal(t, "Provide information about the medication: Aspirin", fc.prompts[0])
	assert.Equal(t, "Just list from most often used to treat to least often used to treat, nothing else, the disorders that Aspirin is used to treat.", fc.prompts[1])
	assert.Equal(t, "Can I take it with food?", fc.prompts[2])
	assert.Equal(t, "I am taking the following medications: Aspirin (81mg, Once daily). I have some questions about the medication.", fc.systems[2])
}

func TestAdvisor_FetchContraindications(t *testing.T) {
	fc := &fakeClient{answer: func(string) (string, error) {
		return "| Seriousness | Description |\n| Serious | Bleeding |", nil
	}}
	a := NewAdvisor(fc)

	got, err := a.FetchContraindications(context.Background(), []string{"Aspirin", "Warfarin"})
	require.NoError(t, err)
	assert.Equal(t, []medication.Contraindication{{Seriousness: "Serious", Description: "Bleeding"}}, got)
	assert.Contains(t, fc.prompts[0], "(Aspirin, Warfarin)")
	assert.Contains(t, fc.prompts[0], "Very Serious, Serious, Moderate, Minor")

	_, err = a.FetchContraindications(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoMedications)
}

func TestAdvisor_PropagatesTypedErrors(t *testing.T) {
	fc := &fakeClient{answer: func(string) (string, error) {
		return "", apperr.Transport("openai completion", errors.New("connection refused"))
	}}
	a := NewAdvisor(fc)

	_, err := a.FetchDescription(context.Background(), "Aspirin")
	assert.Equal(t, apperr.KindTransport, apperr.KindOf(err))

	_, err = a.FetchContraindications(context.Background(), []string{"Aspirin"})
	assert.Equal(t, apperr.KindTransport, apperr.KindOf(err))
}

func TestAdvisor_FetchDescriptionCoalesces(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	fc := &fakeClient{answer: func(string) (string, error) {
		calls.Add(1)
		<-release
		return "Pain", nil
	}}
	a := NewAdvisor(fc)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = a.FetchDescription(context.Background(), "Aspirin")
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	// Give the other callers time to join the in-flight request.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "Pain", r)
	}
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := NewClientFromConfig(context.Background(), cfg)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))

	cfg.LLM.APIKey = "sk-test"
	client, err := NewClientFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	lc, ok := client.(*LoggingClient)
	require.True(t, ok)
	assert.IsType(t, &OpenAIClient{}, lc.underlying)

	cfg.LLM.Provider = config.ProviderGemini
	client, err = NewClientFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	gc, ok := client.(*LoggingClient).underlying.(*GeminiClient)
	require.True(t, ok)
	assert.Equal(t, DefaultGeminiConfig("").Model, gc.model)
}

func TestLoggingClient_PassesThrough(t *testing.T) {
	boom := apperr.Service("x", errors.New("status 500"))
	fc := &fakeClient{answer: func(p string) (string, error) {
		if p == "fail" {
			return "", boom
		}
		return "fine", nil
	}}
	lc := NewLoggingClient(fc, "fake")

	got, err := lc.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "fine", got)

	_, err = lc.Complete(context.Background(), "fail")
	assert.ErrorIs(t, err, boom)
}

func TestAdvisor_WithoutClient(t *testing.T) {
	a := NewAdvisor(nil)
	assert.False(t, a.Ready())

	_, err := a.FetchDescription(context.Background(), "Aspirin")
	assert.ErrorIs(t, err, ErrNoClient)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))

	a.SetClient(&fakeClient{answer: func(string) (string, error) { return "Pain", nil }})
	assert.True(t, a.Ready())
	got, err := a.FetchDescription(context.Background(), "Aspirin")
	require.NoError(t, err)
	assert.Equal(t, "Pain", got)
}
