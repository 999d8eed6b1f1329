package router

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileportal/internal/auth"
	"fileportal/internal/config"
	"fileportal/internal/db"
	"fileportal/internal/handler"
	"fileportal/internal/metrics"
	"fileportal/internal/repository"
	"fileportal/internal/service"
	"fileportal/internal/storage"
	"fileportal/internal/web"
)

type portal struct {
	t    *testing.T
	srv  *httptest.Server
	root string
}

func newPortal(t *testing.T) *portal {
	t.Helper()

	cfg := &config.Config{
		SessionSecret:  "test-secret",
		SessionTTL:     time.Hour,
		MaxUploadBytes: 1024,
	}
	log := zerolog.Nop()

	gdb, err := db.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, false))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store, err := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	m := metrics.New()
	jwtService := auth.NewJWTService(cfg.SessionSecret, cfg.SessionTTL)
	credentials := service.NewCredentialService(repository.NewUserRepository(gdb), m, log)
	authService := service.NewAuthService(credentials, jwtService, auth.NewMemorySessionStore(), m, log)
	files := service.NewFileService(repository.NewFileRepository(gdb), store, cfg.MaxUploadBytes, m, log)

	cookies := handler.CookieOptions{Secure: cfg.CookieSecure}
	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	e := echo.New()
	e.Renderer = renderer
	Register(e, cfg, log, jwtService, m, Handlers{
		Authenticator: handler.NewAuthenticator(authService, cookies, log),
		Pages:         handler.NewPageHandler(credentials, files, cookies),
		Auth:          handler.NewAuthHandler(credentials, authService, cookies, log),
		Admin:         handler.NewAdminHandler(credentials, cookies),
		Files:         handler.NewFileHandler(files, cookies, cfg.MaxUploadBytes, log),
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return &portal{t: t, srv: srv, root: store.Root()}
}

// browser is one cookie jar that does not follow redirects.
type browser struct {
	p      *portal
	client *http.Client
}

func (p *portal) browser() *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(p.t, err)
	return &browser{p: p, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.p.srv.URL)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (b *browser) csrf() string {
	if token := b.cookie("_csrf"); token != "" {
		return token
	}
	b.get("/healthz")
	token := b.cookie("_csrf")
	require.NotEmpty(b.p.t, token)
	return token
}

type response struct {
	status int
	header http.Header
	body   string
}

func (b *browser) do(req *http.Request) response {
	b.p.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.p.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.p.t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: string(body)}
}

func (b *browser) get(path string) response {
	b.p.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.p.srv.URL+path, nil)
	require.NoError(b.p.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) response {
	b.p.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if form.Get("csrf_token") == "" {
		form.Set("csrf_token", b.csrf())
	}
	req, err := http.NewRequest(http.MethodPost, b.p.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(b.p.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) upload(filename string, content []byte) response {
	b.p.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(b.p.t, w.WriteField("csrf_token", b.csrf()))
	part, err := w.CreateFormFile("file", filename)
	require.NoError(b.p.t, err)
	_, err = part.Write(content)
	require.NoError(b.p.t, err)
	require.NoError(b.p.t, w.Close())

	req, err := http.NewRequest(http.MethodPost, b.p.srv.URL+"/upload", &buf)
	require.NoError(b.p.t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return b.do(req)
}

// follow fetches the redirect target of r.
func (b *browser) follow(r response) response {
	b.p.t.Helper()
	require.Equal(b.p.t, http.StatusSeeOther, r.status)
	return b.get(r.header.Get("Location"))
}

func (b *browser) register(username string) response {
	return b.post("/register", url.Values{
		"username":         {username},
		"email":            {username + "@school.test"},
		"password":         {"pw-" + username},
		"confirm_password": {"pw-" + username},
	})
}

func (b *browser) login(username string) response {
	return b.post("/login", url.Values{
		"username": {username},
		"password": {"pw-" + username},
	})
}

// setup registers alice (admin) and bob (approved teacher), both logged in.
func (p *portal) setup() (admin, teacher *browser) {
	admin, teacher = p.browser(), p.browser()
	admin.register("alice")
	teacher.register("bob")
	require.Equal(p.t, http.StatusSeeOther, admin.login("alice").status)
	require.Equal(p.t, http.StatusSeeOther, admin.post("/admin/approve_user/2", nil).status)
	require.Equal(p.t, http.StatusSeeOther, teacher.login("bob").status)
	return admin, teacher
}

func (p *portal) storedFiles() []os.DirEntry {
	entries, err := os.ReadDir(p.root)
	require.NoError(p.t, err)
	return entries
}

func TestPortal_RegistrationAndApproval(t *testing.T) {
	p := newPortal(t)
	admin, teacher := p.browser(), p.browser()

	resp := admin.register("alice")
	assert.Equal(t, "/login", resp.header.Get("Location"))
	assert.Contains(t, admin.follow(resp).body, handler.MsgAdminCreated)

	resp = teacher.register("bob")
	assert.Contains(t, teacher.follow(resp).body, handler.MsgRegistrationDone)

	resp = teacher.register("bob")
	assert.Equal(t, http.StatusConflict, resp.status)
	assert.Contains(t, resp.body, service.MsgUsernameTaken)

	resp = teacher.post("/register", url.Values{
		"username": {"bobby"}, "email": {"bob@school.test"}, "password": {"x"}, "confirm_password": {"x"},
	})
	assert.Equal(t, http.StatusConflict, resp.status)
	assert.Contains(t, resp.body, service.MsgEmailTaken)

	resp = teacher.post("/register", url.Values{
		"username": {"carl"}, "email": {"carl@school.test"}, "password": {"x"}, "confirm_password": {"y"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Contains(t, resp.body, service.MsgPasswordMismatch)

	long := strings.Repeat("p", 73)
	resp = teacher.post("/register", url.Values{
		"username": {"carl"}, "email": {"carl@school.test"}, "password": {long}, "confirm_password": {long},
	})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Contains(t, resp.body, service.MsgPasswordTooLong)

	resp = teacher.login("bob")
	assert.Equal(t, http.StatusForbidden, resp.status)
	assert.Contains(t, resp.body, handler.MsgPendingApproval)
	assert.Empty(t, teacher.cookie(handler.SessionCookieName))

	resp = teacher.post("/login", url.Values{"username": {"bob"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Contains(t, resp.body, handler.MsgInvalidLogin)

	resp = teacher.get("/dashboard")
	assert.Equal(t, "/login", resp.header.Get("Location"))
	assert.Contains(t, teacher.follow(resp).body, handler.MsgLoginRequired)

	resp = admin.login("alice")
	assert.Equal(t, "/dashboard", resp.header.Get("Location"))
	dashboard := admin.get("/dashboard")
	assert.Equal(t, http.StatusOK, dashboard.status)
	assert.Contains(t, dashboard.body, "bob@school.test")

	resp = admin.post("/admin/approve_user/2", nil)
	assert.Contains(t, admin.follow(resp).body, "User bob has been approved.")

	resp = teacher.login("bob")
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, http.StatusOK, teacher.get("/dashboard").status)

	// a teacher cannot use admin actions
	teacher.register("carol")
	assert.Equal(t, http.StatusForbidden, teacher.get("/upload").status)
	resp = teacher.post("/admin/reject_user/3", nil)
	assert.Equal(t, http.StatusForbidden, resp.status)
	assert.Equal(t, "forbidden", resp.body)
	assert.Equal(t, http.StatusForbidden, teacher.post("/admin/approve_user/3", nil).status)
	assert.Contains(t, admin.get("/dashboard").body, "carol@school.test")

	resp = admin.post("/admin/reject_user/3", nil)
	assert.Contains(t, admin.follow(resp).body, "User carol has been rejected and removed.")
	assert.NotContains(t, admin.get("/dashboard").body, "carol@school.test")

	assert.Equal(t, http.StatusNotFound, admin.post("/admin/approve_user/999", nil).status)
	assert.Equal(t, http.StatusNotFound, admin.post("/admin/reject_user/999", nil).status)
}

func TestPortal_UploadAndDownload(t *testing.T) {
	p := newPortal(t)
	admin, teacher := p.setup()

	resp := admin.post("/upload", nil)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Contains(t, resp.body, service.MsgNoFileSelected)

	resp = admin.upload("report.exe", []byte("MZ"))
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Contains(t, resp.body, service.MsgInvalidFileType)
	assert.Empty(t, p.storedFiles())

	resp = admin.upload("big.txt", bytes.Repeat([]byte("a"), 2048))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.status)
	assert.Empty(t, p.storedFiles())

	assert.Equal(t, http.StatusForbidden, teacher.upload("notes.txt", []byte("x")).status)
	assert.Empty(t, p.storedFiles())

	content := []byte("bring your own pencils\n")
	resp = admin.upload("notes.txt", content)
	assert.Contains(t, admin.follow(resp).body, handler.MsgUploaded)

	resp = admin.upload("report.PDF", []byte("%PDF-1.4\n"))
	assert.Equal(t, http.StatusSeeOther, resp.status)
	resp = admin.upload("notes.txt", []byte("second copy\n"))
	assert.Equal(t, http.StatusSeeOther, resp.status)

	entries := p.storedFiles()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "notes")
	}

	dashboard := teacher.get("/dashboard").body
	assert.Equal(t, 2, strings.Count(dashboard, "<td>notes.txt</td>"))
	assert.Contains(t, dashboard, "<td>report.PDF</td>")

	resp = teacher.get("/download/1")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, string(content), resp.body)
	_, params, err := mime.ParseMediaType(resp.header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", params["filename"])
	assert.True(t, strings.HasPrefix(resp.header.Get("Content-Type"), "text/plain"))

	// bytes removed behind the registry's back
	for _, e := range entries {
		require.NoError(t, os.Remove(filepath.Join(p.root, e.Name())))
	}
	resp = teacher.get("/download/1")
	assert.Equal(t, "/dashboard", resp.header.Get("Location"))
	assert.Contains(t, teacher.follow(resp).body, service.MsgFileNotFound)

	resp = teacher.get("/download/999")
	assert.Contains(t, teacher.follow(resp).body, service.MsgFileNotFound)

	anonymous := p.browser()
	assert.Equal(t, "/login", anonymous.get("/download/2").header.Get("Location"))
}

func TestPortal_LogoutInvalidatesSession(t *testing.T) {
	p := newPortal(t)
	admin, _ := p.setup()

	token := admin.cookie(handler.SessionCookieName)
	require.NotEmpty(t, token)

	resp := admin.get("/logout")
	assert.Equal(t, "/", resp.header.Get("Location"))
	assert.Contains(t, admin.follow(resp).body, handler.MsgLoggedOut)
	assert.Empty(t, admin.cookie(handler.SessionCookieName))

	// replaying the old cookie must not work either
	req, err := http.NewRequest(http.MethodGet, p.srv.URL+"/dashboard", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: handler.SessionCookieName, Value: token})
	replay := p.browser().do(req)
	assert.Equal(t, http.StatusSeeOther, replay.status)
	assert.Equal(t, "/login", replay.header.Get("Location"))
}

func TestPortal_RejectsMissingCSRFToken(t *testing.T) {
	p := newPortal(t)
	b := p.browser()

	resp := b.post("/register", url.Values{
		"csrf_token": {"forged"},
		"username":   {"mallory"}, "email": {"m@school.test"}, "password": {"x"}, "confirm_password": {"x"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "invalid request", resp.body)

	// nothing was created: the next registration is still the first account
	resp = b.register("alice")
	assert.Contains(t, b.follow(resp).body, handler.MsgAdminCreated)
}

func TestPortal_OperationalEndpoints(t *testing.T) {
	p := newPortal(t)
	b := p.browser()

	health := b.get("/healthz")
	assert.Equal(t, http.StatusOK, health.status)
	assert.Equal(t, "ok", health.body)

	b.register("alice")
	b.login("alice")

	m := b.get("/metrics")
	assert.Equal(t, http.StatusOK, m.status)
	assert.Contains(t, m.body, `fileportal_logins_total{outcome="success"} 1`)
	assert.Contains(t, m.body, `fileportal_registrations_total{outcome="success"} 1`)
}

func TestBodyLimit(t *testing.T) {
	assert.Equal(t, "17408K", bodyLimit(16<<20))
}
