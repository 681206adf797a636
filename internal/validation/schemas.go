package validation

// Role values accepted at registration.
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

var emailMessages = map[string]string{
	"email.email":    "Please provide a valid email address",
	"email.required": "Email is required",
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Messages implements Messenger.
func (LoginRequest) Messages() map[string]string {
	return merge(emailMessages, map[string]string{
		"password.min":      "Password must be at least 6 characters long",
		"password.required": "Password is required",
	})
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,mixedcase"`
	Role     string `json:"role" validate:"oneof=user admin moderator"`
}

// ApplyDefaults implements Defaulter.
func (r *RegisterRequest) ApplyDefaults() {
	if r.Role == "" {
		r.Role = RoleUser
	}
}

// Messages implements Messenger.
func (RegisterRequest) Messages() map[string]string {
	return merge(emailMessages, map[string]string{
		"password.min":       "Password must be at least 8 characters long",
		"password.mixedcase": "Password must contain at least one uppercase letter, one lowercase letter, and one number",
		"password.required":  "Password is required",
	})
}

// IDParams are the path parameters of /users/:id routes.
type IDParams struct {
	ID string `json:"id" validate:"required,uuid"`
}

// Messages implements Messenger.
func (IDParams) Messages() map[string]string {
	return map[string]string{
		"id.uuid":     "Invalid ID format",
		"id.required": "ID is required",
	}
}

// NameParams are the path parameters of /services/:name routes.
type NameParams struct {
	Name string `json:"name" validate:"required"`
}

// Service request defaults and bounds, in milliseconds.
const (
	DefaultServiceTimeoutMS = 10000
	DefaultServiceRetries   = 3
)

// AddServiceRequest is the body of POST /admin/services.
type AddServiceRequest struct {
	Name    string            `json:"name" validate:"required"`
	BaseURL string            `json:"baseUrl" validate:"required,url"`
	Timeout int               `json:"timeout" validate:"min=1000,max=60000"`
	Retries *int              `json:"retries" validate:"omitnil,min=0,max=5"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ApplyDefaults implements Defaulter.
func (r *AddServiceRequest) ApplyDefaults() {
	if r.Timeout == 0 {
		r.Timeout = DefaultServiceTimeoutMS
	}
	if r.Retries == nil {
		retries := DefaultServiceRetries
		r.Retries = &retries
	}
}

// PermissionsRequest is the body of PUT /admin/users/:id/permissions.
type PermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required"`
}

// VerifyTokenRequest is the body of POST /auth/verify. A missing token is
// reported by the handler, not by validation.
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// Schemas used by the HTTP routes.
var (
	LoginSchema = Schema{
		Name: "login",
		Body: func() any { return &LoginRequest{} },
	}

	RegisterSchema = Schema{
		Name: "register",
		Body: func() any { return &RegisterRequest{} },
	}

	IDParamSchema = Schema{
		Name:   "idParam",
		Params: func() any { return &IDParams{} },
	}

	UpdatePermissionsSchema = Schema{
		Name:   "updatePermissions",
		Params: func() any { return &IDParams{} },
		Body:   func() any { return &PermissionsRequest{} },
	}

	AddServiceSchema = Schema{
		Name: "addService",
		Body: func() any { return &AddServiceRequest{} },
	}

	ServiceNameSchema = Schema{
		Name:   "serviceName",
		Params: func() any { return &NameParams{} },
	}
)

func merge(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
