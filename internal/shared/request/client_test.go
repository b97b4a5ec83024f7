package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveClientType(t *testing.T) {
	tests := []struct {
		name   string
		header string
		ua     string
		want   ClientType
	}{
		{"header wins", "web", "okhttp/4.9", ClientWeb},
		{"browser", "", "Mozilla/5.0 (X11; Linux x86_64)", ClientWeb},
		{"android", "", "okhttp/4.9.0", ClientMobile},
		{"curl", "", "curl/8.1", ClientAPI},
		{"empty", "", "", ClientAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveClientType(tt.header, tt.ua))
		})
	}
}
