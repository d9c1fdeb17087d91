package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups jobsync's secrets in the OS keychain.
const KeyringService = "jobsync"

var providerEnv = map[string][]string{
	"openrouter": {"OPENROUTER_API_KEY"},
	"openai":     {"OPENAI_API_KEY"},
	"gemini":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// ResolveAPIKey fills llm.APIKey when the config left it empty: first from
// the provider's environment variable, then from the OS keyring.
func ResolveAPIKey(llm *LLMConfig) error {
	if strings.TrimSpace(llm.APIKey) != "" {
		return nil
	}
	for _, name := range providerEnv[llm.Provider] {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			llm.APIKey = v
			return nil
		}
	}
	key, err := keyring.Get(KeyringService, llm.Provider)
	if err == nil && strings.TrimSpace(key) != "" {
		llm.APIKey = strings.TrimSpace(key)
		return nil
	}
	return fmt.Errorf("no API key for %s: set llm.api_key, %s, or store one with 'jobsync set-key %s'",
		llm.Provider, strings.Join(providerEnv[llm.Provider], "/"), llm.Provider)
}

// StoreAPIKey saves a provider key in the OS keyring.
func StoreAPIKey(provider, key string) error {
	if _, ok := providerEnv[provider]; !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("key is empty")
	}
	return keyring.Set(KeyringService, provider, strings.TrimSpace(key))
}
