package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                  "/",
		"/metrics":                          "/metrics",
		"/v1/identities":                    "/v1/identities",
		"/v1/identities?index=3":            "/v1/identities",
		"/v1/identities/HIP-1":              "/v1/identities/:id",
		"/v1/identities/HIP-1/content":      "/v1/identities/:id/content",
		"/v1/identities/HIP-1/verification": "/v1/identities/:id/verification",
		"/v1/identities/HIP-1/reputation":   "/v1/identities/:id/reputation",
		"/v1/identities/HIP-1/interactions": "/v1/identities/:id/interactions",
		"/v1/identities/HIP-1/extra/deep":   "/v1/identities/HIP-1/extra/deep",
		"/v1/owners/addr-a":                 "/v1/owners/:owner",
		"/v1/events":                        "/v1/events",
		"/v1/events/stream":                 "/v1/events/stream",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
