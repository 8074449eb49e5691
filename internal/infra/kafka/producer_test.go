package kafka

import (
	"testing"

	"github.com/dabananda/secure-account-api/internal/infra/config"
)

func TestProducer_TopicName(t *testing.T) {
	cases := []struct {
		name      string
		prefix    string
		eventType string
		want      string
	}{
		{"no prefix", "", "identity.account.registered", "identity.account.registered"},
		{"prefixed", "prod", "identity.account.registered", "prod.identity.account.registered"},
		{"already prefixed", "prod", "prod.identity.account.registered", "prod.identity.account.registered"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &Producer{cfg: config.KafkaSettings{TopicPrefix: tc.prefix}}
			if got := p.TopicName(tc.eventType); got != tc.want {
				t.Fatalf("TopicName(%q) = %q, want %q", tc.eventType, got, tc.want)
			}
		})
	}
}
