package api

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/example/chat-app/domain/apperr"
	msgdomain "github.com/example/chat-app/domain/message"
	"github.com/example/chat-app/modules/auth"
	"github.com/example/chat-app/modules/media"
	"github.com/example/chat-app/modules/message"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
)

const mediaMaxAge = 5 * time.Minute

var (
	errInvalidLimit  = apperr.Validation("limit must be a positive integer")
	errInvalidBefore = apperr.Validation("before must be an RFC 3339 timestamp")
	errNoMedia       = apperr.Internal("media storage unavailable", nil)
)

// MediaStore stores and serves uploaded images.
type MediaStore interface {
	Upload(ctx context.Context, dataURL string) (*media.Image, error)
	Get(ctx context.Context, id string) ([]byte, *media.Image, error)
	Delete(ctx context.Context, id string) error
}

// HealthChecker reports the health of one module.
type HealthChecker interface {
	Health(ctx context.Context) mono.HealthStatus
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	auth         auth.AuthPort
	messages     message.MessagePort
	media        MediaStore
	cookieSecure bool
	health       map[string]HealthChecker
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authPort auth.AuthPort, messages message.MessagePort, mediaStore MediaStore, cookieSecure bool) *Handlers {
	return &Handlers{
		auth:         authPort,
		messages:     messages,
		media:        mediaStore,
		cookieSecure: cookieSecure,
		health:       make(map[string]HealthChecker),
	}
}

// Signup handles POST /api/auth/signup.
func (h *Handlers) Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errBadBody)
	}

	session, err := h.auth.Signup(c.UserContext(), req.Email, req.FullName, req.Password)
	if err != nil {
		return writeError(c, err)
	}

	h.setSessionCookie(c, session)
	return c.Status(fiber.StatusCreated).JSON(session.User)
}

// Login handles POST /api/auth/login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errBadBody)
	}

	session, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}

	h.setSessionCookie(c, session)
	return c.JSON(session.User)
}

// Logout handles POST /api/auth/logout.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.JSON(MessageResponse{Message: "Logged out successfully"})
}

// Check handles GET /api/auth/check.
func (h *Handlers) Check(c *fiber.Ctx) error {
	return c.JSON(currentUser(c))
}

// UpdateProfile handles PUT /api/auth/update-profile.
func (h *Handlers) UpdateProfile(c *fiber.Ctx) error {
	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errBadBody)
	}
	if req.ProfilePic == "" {
		return writeError(c, auth.ErrProfilePicRequired)
	}

	ref, upload, err := h.storeImage(c.UserContext(), req.ProfilePic)
	if err != nil {
		return writeError(c, err)
	}

	user, err := h.auth.UpdateProfile(c.UserContext(), currentUser(c).ID, ref)
	if err != nil {
		h.discardUpload(upload)
		return writeError(c, err)
	}
	return c.JSON(user)
}

// ListUsers handles GET /api/messages/users.
func (h *Handlers) ListUsers(c *fiber.Ctx) error {
	users, err := h.auth.ListUsers(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(users)
}

// ListConversation handles GET /api/messages/:peerId.
func (h *Handlers) ListConversation(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return writeError(c, err)
	}

	msgs, err := h.messages.ListConversation(c.UserContext(), currentUser(c).ID, c.Params("peerId"), page)
	if err != nil {
		return writeError(c, err)
	}
	if msgs == nil {
		msgs = []msgdomain.Message{}
	}
	return c.JSON(msgs)
}

// SendMessage handles POST /api/messages/send/:peerId.
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errBadBody)
	}

	image, upload, err := h.storeImage(c.UserContext(), req.Image)
	if err != nil {
		return writeError(c, err)
	}

	msg, err := h.messages.Send(c.UserContext(), currentUser(c).ID, c.Params("peerId"), req.body(), image)
	if err != nil {
		h.discardUpload(upload)
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// GetMedia handles GET /api/media/:id.
func (h *Handlers) GetMedia(c *fiber.Ctx) error {
	if h.media == nil {
		return writeError(c, errNoMedia)
	}

	data, img, err := h.media.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	etag := strconv.Quote(img.Digest)
	c.Set(fiber.HeaderCacheControl, "public, max-age="+strconv.Itoa(int(mediaMaxAge.Seconds())))
	c.Set(fiber.HeaderETag, etag)
	if c.Get(fiber.HeaderIfNoneMatch) == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}

	c.Set(fiber.HeaderContentType, img.ContentType)
	return c.Send(data)
}

// Health handles GET /health.
func (h *Handlers) Health(c *fiber.Ctx) error {
	healthy := true
	modules := make(map[string]mono.HealthStatus, len(h.health))
	for name, checker := range h.health {
		status := checker.Health(c.UserContext())
		modules[name] = status
		healthy = healthy && status.Healthy
	}

	code := fiber.StatusOK
	if !healthy {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"healthy": healthy,
		"modules": modules,
	})
}

// storeImage turns an image field into a stored reference. Empty stays
// empty and an existing media reference is kept as is. The returned image
// is non-nil only when this call uploaded something.
func (h *Handlers) storeImage(ctx context.Context, raw string) (string, *media.Image, error) {
	if raw == "" || media.IsRef(raw) {
		return raw, nil, nil
	}
	if h.media == nil {
		return "", nil, errNoMedia
	}
	img, err := h.media.Upload(ctx, raw)
	if err != nil {
		return "", nil, err
	}
	return img.Ref, img, nil
}

// discardUpload removes an image nothing ended up referencing. It runs on
// a fresh context since the request may already be cancelled.
func (h *Handlers) discardUpload(img *media.Image) {
	if img == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.media.Delete(ctx, img.ID); err != nil {
		log.Printf("[api] failed to discard unreferenced image %s: %v", img.ID, err)
	}
}

func (h *Handlers) setSessionCookie(c *fiber.Ctx, session *auth.SessionResult) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		MaxAge:   int(session.ExpiresIn.Seconds()),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func parsePage(c *fiber.Ctx) (msgdomain.Page, error) {
	var page msgdomain.Page

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return page, errInvalidLimit
		}
		page.Limit = n
	}
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return page, errInvalidBefore
		}
		page.Before = t
	}
	return page, nil
}
