package tracing

import "testing"

func TestSetup_DisabledWithoutKeys(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
	}{
		{"no keys", Config{Host: "https://langfuse.example"}},
		{"public key only", Config{PublicKey: "pk-lf-test"}},
		{"secret key only", Config{SecretKey: "sk-lf-test"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			handler, flush, ok := Setup(tc.cfg)
			if ok {
				t.Error("tracing enabled without both keys")
			}
			if handler != nil || flush != nil {
				t.Error("disabled tracing must return nil handler and flush")
			}
		})
	}
}
