package llm

import (
	"context"
	"fmt"

	"github.com/antoniostano/voicecaller/internal/generation"
)

// MockClient returns deterministic replies when no provider is configured.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (MockClient) Generate(ctx context.Context, req generation.Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	assistant := 0
	for _, m := range req.Messages {
		if m.Role == generation.RoleAssistant {
			assistant++
		}
	}
	if assistant == 0 {
		return "Hola, le llamamos de servicio al cliente. ¿Me escucha bien?", nil
	}
	return fmt.Sprintf("Entendido. Esta es la respuesta de prueba número %d.", assistant+1), nil
}
