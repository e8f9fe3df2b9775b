package llm

import "testing"

func TestNewService_Validation(t *testing.T) {
	if _, err := NewService(&Config{Provider: "openai"}); err == nil {
		t.Fatal("NewService() should fail without an API key")
	}

	svc, err := NewService(&Config{Provider: "openai", APIKey: "test-key", Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	s, ok := svc.(*service)
	if !ok {
		t.Fatal("NewService() did not return *service type")
	}
	if s.maxTokens != 800 {
		t.Errorf("maxTokens = %d, want default 800", s.maxTokens)
	}
	if s.model != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", s.model)
	}
}

func TestNewService_ProviderDefaults(t *testing.T) {
	tests := []struct {
		provider string
		apiKey   string
		wantErr  bool
	}{
		{"deepseek", "k", false},
		{"siliconflow", "k", false},
		{"ollama", "", false}, // local provider needs no key
		{"openai", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			_, err := NewService(&Config{Provider: tt.provider, APIKey: tt.apiKey, Model: "m"})
			if (err != nil) != tt.wantErr {
				t.Errorf("NewService(%s) error = %v, wantErr %v", tt.provider, err, tt.wantErr)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.in); got != tt.want {
				t.Errorf("extractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}
