package pipeline

import (
	"github.com/indyzai/api-gateway/internal/auth"
	"github.com/indyzai/api-gateway/internal/authz"
)

// Authenticate requires a valid bearer token and attaches its identity.
func Authenticate(verifier *auth.Verifier) Stage {
	return StageFunc(func(req *Request) Outcome {
		token := auth.BearerToken(req.Header().Get("Authorization"))

		identity, err := verifier.Verify(req.Context(), token)
		if err != nil {
			return Fail(err)
		}
		attachIdentity(req, identity)
		return Continue()
	})
}

// OptionalAuthenticate attaches the identity of a valid bearer token and
// otherwise proceeds anonymously.
func OptionalAuthenticate(verifier *auth.Verifier) Stage {
	return StageFunc(func(req *Request) Outcome {
		token := auth.BearerToken(req.Header().Get("Authorization"))
		if identity := verifier.OptionalVerify(req.Context(), token); identity != nil {
			attachIdentity(req, identity)
		}
		return Continue()
	})
}

func attachIdentity(req *Request, identity *auth.Identity) {
	req.Identity = identity
	req.SetContext(auth.ContextWithIdentity(req.Context(), identity))
}

// RequireRole admits identities whose role is one of roles. With no roles
// it only requires an identity.
func RequireRole(roles ...string) Stage {
	return StageFunc(func(req *Request) Outcome {
		if err := authz.RequireRole(req.Identity, roles...); err != nil {
			return Fail(err)
		}
		return Continue()
	})
}

// RequirePermission admits identities holding permission.
func RequirePermission(permission string) Stage {
	return StageFunc(func(req *Request) Outcome {
		if err := authz.RequirePermission(req.Identity, permission); err != nil {
			return Fail(err)
		}
		return Continue()
	})
}

// APIKey admits requests carrying the shared service key in X-API-Key.
func APIKey(verifier *auth.APIKeyVerifier) Stage {
	return StageFunc(func(req *Request) Outcome {
		if err := verifier.Verify(req.Header().Get(auth.HeaderAPIKey)); err != nil {
			return Fail(err)
		}
		return Continue()
	})
}
