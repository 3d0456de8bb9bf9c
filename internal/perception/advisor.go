package perception

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"medtrack/internal/apperr"
	"medtrack/internal/articulation"
	"medtrack/internal/logging"
	"medtrack/internal/medication"
)

// Prompt templates sent to the service.
const (
	infoPrompt             = "Provide information about the medication: %s"
	descriptionPrompt      = "Just list from most often used to treat to least often used to treat, nothing else, the disorders that %s is used to treat."
	contraindicationPrompt = "Are there any contraindications for this combination of medicines (%s)? " +
		"If so, list them in a table format from most serious to least serious. " +
		"Each row should have two columns: Seriousness and Description. " +
		"Use the following seriousness levels: Very Serious, Serious, Moderate, Minor."
)

// ErrNoMedications is returned when a prompt needs at least one medication.
var ErrNoMedications = errors.New("no medications to check")

// ErrNoClient is returned while no client is configured.
var ErrNoClient = errors.New("LLM client not configured; set an API key first")

// Advisor issues medtrack's prompts through an LLMClient. The client can be
// replaced while units of work are using the Advisor.
type Advisor struct {
	mu     sync.RWMutex
	client LLMClient

	// Concurrent description fetches for the same name share one request.
	descriptions singleflight.Group
}

// NewAdvisor creates an Advisor on client, which may be nil until SetClient.
func NewAdvisor(client LLMClient) *Advisor {
	return &Advisor{client: client}
}

// SetClient replaces the client used by later calls.
func (a *Advisor) SetClient(client LLMClient) {
	a.mu.Lock()
	a.client = client
	a.mu.Unlock()
}

// Ready reports whether a client is configured.
func (a *Advisor) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client != nil
}

func (a *Advisor) llm(op string) (LLMClient, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil, apperr.Config(op, ErrNoClient)
	}
	return a.client, nil
}

// FetchInfo returns general information about a medication.
func (a *Advisor) FetchInfo(ctx context.Context, name string) (string, error) {
	client, err := a.llm("fetch info")
	if err != nil {
		return "", err
	}
	return client.Complete(ctx, fmt.Sprintf(infoPrompt, name))
}

// FetchDescription returns the disorders a medication treats, most common
// first. It is the enrichment fetch used during reconciliation.
func (a *Advisor) FetchDescription(ctx context.Context, name string) (string, error) {
	client, err := a.llm("fetch description")
	if err != nil {
		return "", err
	}
	v, err, shared := a.descriptions.Do(name, func() (interface{}, error) {
		text, err := client.Complete(ctx, fmt.Sprintf(descriptionPrompt, name))
		if err != nil {
			return "", err
		}
		return articulation.ParseDescription(text), nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		logging.APIDebug("description fetch for %q shared with a concurrent caller", name)
	}
	return v.(string), nil
}

// FetchContraindications asks about the combination of names and parses the
// table in the answer.
func (a *Advisor) FetchContraindications(ctx context.Context, names []string) ([]medication.Contraindication, error) {
	if len(names) == 0 {
		return nil, ErrNoMedications
	}
	client, err := a.llm("fetch contraindications")
	if err != nil {
		return nil, err
	}
	text, err := client.Complete(ctx, fmt.Sprintf(contraindicationPrompt, strings.Join(names, ", ")))
	if err != nil {
		return nil, err
	}
	return articulation.ParseContraindications(text), nil
}

// Chat answers message in the context of the medication summary.
func (a *Advisor) Chat(ctx context.Context, summary, message string) (string, error) {
	client, err := a.llm("chat")
	if err != nil {
		return "", err
	}
	return client.CompleteWithSystem(ctx, articulation.SystemPrompt(summary), message)
}
