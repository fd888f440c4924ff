package services

import "testing"

func TestStreamClientHasNoOverallTimeout(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_TIMEOUT_SECONDS", "1")

	ai, err := NewOpenAIClient(newTestLogger())
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	c := ai.(*openAIClient)

	if c.httpClient.Timeout <= 0 {
		t.Fatalf("blocking client must keep a request timeout, got %v", c.httpClient.Timeout)
	}
	// A healthy stream may legitimately outlive any fixed deadline; only the
	// relay's inactivity timer bounds it.
	if c.streamClient.Timeout != 0 {
		t.Fatalf("stream client must not carry an overall timeout, got %v", c.streamClient.Timeout)
	}
}
