package intake

import "testing"

func TestClassifyComment(t *testing.T) {
	tests := []struct {
		name   string
		meta   CommentMeta
		botIDs []string
		wantAI bool
	}{
		{
			name:   "assistant display name",
			meta:   CommentMeta{DisplayName: "Movonte Assistant Bot", Body: "Working on it."},
			wantAI: true,
		},
		{
			name:   "noreply email",
			meta:   CommentMeta{DisplayName: "Sistema", Email: "noreply@example.com", Body: "ok"},
			wantAI: true,
		},
		{
			name:   "spanish greeting signature",
			meta:   CommentMeta{DisplayName: "Carlos Ruiz", Body: "¡Hola! Soy el asistente de Movonte, ¿en qué puedo ayudarte?"},
			wantAI: true,
		},
		{
			name:   "automatic reply signature",
			meta:   CommentMeta{DisplayName: "Carlos Ruiz", Body: "Esta es una respuesta automática."},
			wantAI: true,
		},
		{
			name:   "known bot account id",
			meta:   CommentMeta{DisplayName: "Carlos Ruiz", AccountID: "5f1b2c3d4e", Body: "hello"},
			botIDs: []string{"5f1b2c3d4e"},
			wantAI: true,
		},
		{
			name:   "plain human comment",
			meta:   CommentMeta{DisplayName: "Carlos Ruiz", Email: "carlos@cliente.com", AccountID: "abc", Body: "El sistema sigue fallando al iniciar sesión."},
			botIDs: []string{"5f1b2c3d4e"},
			wantAI: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyComment(tt.meta, tt.botIDs)
			if got.IsAI != tt.wantAI {
				t.Fatalf("IsAI = %v (reason %q), want %v", got.IsAI, got.Reason, tt.wantAI)
			}
			if got.IsAI && got.Reason == "" {
				t.Fatal("ai classification without reason")
			}
		})
	}
}
