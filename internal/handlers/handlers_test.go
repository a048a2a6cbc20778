package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/edu-admin/internal/auth"
	"github.com/example/edu-admin/internal/faceencoder"
	"github.com/example/edu-admin/internal/repository"
	"github.com/example/edu-admin/internal/usecase"
)

const testJWTSecret = "test-secret"

type memoryFaces struct {
	saved []*repository.FaceRecord
}

func (m *memoryFaces) SaveFace(ctx context.Context, face *repository.FaceRecord) error {
	m.saved = append(m.saved, face)
	return nil
}

func (m *memoryFaces) ListFaces(ctx context.Context, idType string) ([]*repository.FaceRecord, error) {
	return m.saved, nil
}

func (m *memoryFaces) FindDuplicatesByHash(ctx context.Context, idType, identifier, hash string) ([]*repository.FaceRecord, error) {
	return nil, nil
}

func (m *memoryFaces) SaveVerification(ctx context.Context, log *repository.FaceVerification) error {
	return nil
}

func (m *memoryFaces) AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error) {
	return &repository.MetricsAggregation{TotalCount: 2, EncodedCount: 1}, nil
}

type memoryCache map[string]string

func (m memoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m[key] = value.(string)
	return nil
}

func (m memoryCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m memoryCache) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m, k)
	}
	return nil
}

func (m memoryCache) Ping(ctx context.Context) error { return nil }

type fixedEncoder struct {
	result *faceencoder.Result
}

func (f fixedEncoder) Encode(ctx context.Context, image []byte) (*faceencoder.Result, error) {
	return f.result, nil
}

type memoryObjects struct{}

func (memoryObjects) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return nil
}

func (memoryObjects) Remove(ctx context.Context, key string) error { return nil }

func (memoryObjects) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "http://objects/" + key, nil
}

type memoryDirectory struct {
	usecase.DirectoryRepository
	students map[string]*repository.Student
}

func (m *memoryDirectory) CreateStudent(ctx context.Context, s *repository.Student) error {
	if _, ok := m.students[s.RollNumber]; ok {
		return repository.ErrConflict
	}
	s.ID = uuid.New()
	m.students[s.RollNumber] = s
	return nil
}

func (m *memoryDirectory) GetStudentByRoll(ctx context.Context, roll string) (*repository.Student, error) {
	s, ok := m.students[roll]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (m *memoryDirectory) ListStudents(ctx context.Context, orgID uuid.UUID) ([]repository.Student, error) {
	return nil, nil
}

func (m *memoryDirectory) CountsByOrganization(ctx context.Context, orgID uuid.UUID) (*repository.OrganizationCounts, error) {
	return &repository.OrganizationCounts{Students: int64(len(m.students)), ByDept: []repository.DepartmentCount{{Name: "Math", Students: 1}}}, nil
}

type memoryAccounts map[string]*repository.Account

func (m memoryAccounts) Create(ctx context.Context, a *repository.Account) error {
	m[a.Login] = a
	return nil
}

func (m memoryAccounts) FindByLogin(ctx context.Context, role, login string) (*repository.Account, error) {
	a, ok := m[login]
	if !ok || a.Role != role {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (m memoryAccounts) Exists(ctx context.Context, login string) (bool, error) {
	_, ok := m[login]
	return ok, nil
}

type testEnv struct {
	router *gin.Engine
	faces  *memoryFaces
}

func newTestEnv(t *testing.T, encoder faceencoder.Client) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	faces := &memoryFaces{}
	svc := Services{
		Faces:     usecase.NewFaceUseCase(faces, memoryCache{}, encoder, memoryObjects{}, usecase.FaceOptions{}, zap.NewNop()),
		Directory: usecase.NewDirectoryUseCase(&memoryDirectory{students: map[string]*repository.Student{}}, memoryCache{}, zap.NewNop()),
		Accounts:  usecase.NewAccountUseCase(memoryAccounts{}, auth.NewIssuer(testJWTSecret, "", time.Hour), zap.NewNop()),
		Logger:    zap.NewNop(),
	}

	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize
	RegisterRoutes(router, svc, auth.JWTMiddleware(testJWTSecret, ""))
	return &testEnv{router: router, faces: faces}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "admin@example.com"))
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func encoded() fixedEncoder {
	return fixedEncoder{result: &faceencoder.Result{Faces: 1, Vector: []float32{0.1, 0.2}}}
}

func TestVerifyRejectsLargeUpload(t *testing.T) {
	env := newTestEnv(t, encoded())

	body, contentType := buildMultipartBody(t, "image/png", bytes.Repeat([]byte("a"), MaxUploadSize+1), map[string]string{"identifier": "R1", "id_type": "student"})
	req := httptest.NewRequest(http.MethodPost, "/api/verify-face", body)
	req.Header.Set("Content-Type", contentType)

	resp := env.do(t, req)
	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
}

func TestVerifyRejectsUnsupportedContentType(t *testing.T) {
	env := newTestEnv(t, encoded())

	body, contentType := buildMultipartBody(t, "text/plain", []byte("hello"), map[string]string{"identifier": "R1", "id_type": "student"})
	req := httptest.NewRequest(http.MethodPost, "/api/verify-face", body)
	req.Header.Set("Content-Type", contentType)

	resp := env.do(t, req)
	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, resp.Code)
	}
}

func TestVerifyFaceEndpoint(t *testing.T) {
	cases := []struct {
		name    string
		encoder fixedEncoder
		fields  map[string]string
		status  int
		encoded bool
	}{
		{"encoded", encoded(), map[string]string{"identifier": "R1", "id_type": "student"}, http.StatusOK, true},
		{"no face", fixedEncoder{result: &faceencoder.Result{}}, map[string]string{"identifier": "R1", "id_type": "student"}, http.StatusOK, false},
		{"missing identifier", encoded(), map[string]string{"id_type": "student"}, http.StatusBadRequest, false},
		{"bad id type", encoded(), map[string]string{"identifier": "R1", "id_type": "alumni"}, http.StatusBadRequest, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.encoder)
			body, contentType := buildMultipartBody(t, "image/png", testPNG(t), tc.fields)
			req := httptest.NewRequest(http.MethodPost, "/api/verify-face", body)
			req.Header.Set("Content-Type", contentType)

			resp := env.do(t, req)
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			if tc.status != http.StatusOK {
				return
			}
			var out struct {
				Encoded bool `json:"encoded"`
			}
			if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Encoded != tc.encoded {
				t.Fatalf("expected encoded=%v, got %v", tc.encoded, out.Encoded)
			}
		})
	}
}

func TestUploadFaceEndpoint(t *testing.T) {
	env := newTestEnv(t, encoded())
	body, contentType := buildMultipartBody(t, "image/png", testPNG(t), map[string]string{"identifier": "R1", "id_type": "student"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload-face", body)
	req.Header.Set("Content-Type", contentType)

	resp := env.do(t, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(env.faces.saved) != 1 {
		t.Fatalf("expected a stored face, got %d", len(env.faces.saved))
	}
}

func TestUploadFaceWithoutFaceReturnsErrorField(t *testing.T) {
	env := newTestEnv(t, fixedEncoder{result: &faceencoder.Result{}})
	body, contentType := buildMultipartBody(t, "image/png", testPNG(t), map[string]string{"identifier": "R1", "id_type": "student"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload-face", body)
	req.Header.Set("Content-Type", contentType)

	resp := env.do(t, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
	var out map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil || out["error"] == "" {
		t.Fatalf("expected error field, got %s", resp.Body.String())
	}
}

func TestRecognizeFaceEndpoint(t *testing.T) {
	env := newTestEnv(t, encoded())
	env.faces.saved = []*repository.FaceRecord{{
		ID: uuid.New(), Identifier: "E7", IDType: "staff", ObjectKey: "faces/staff/E7/k.jpg",
		Encoding: faceencoder.MarshalVector([]float32{0.1, 0.2}),
	}}

	payload, _ := json.Marshal(map[string]string{"image": "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t))})
	req := httptest.NewRequest(http.MethodPost, "/api/recognize-face", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp := env.do(t, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "recognized" || out["identifier"] != "E7" || out["image_url"] != "http://objects/faces/staff/E7/k.jpg" {
		t.Fatalf("unexpected body %v", out)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t, encoded())
	req := httptest.NewRequest(http.MethodGet, "/api/face-metrics", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")

	resp := env.do(t, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestStudentCRUDErrorMapping(t *testing.T) {
	env := newTestEnv(t, encoded())
	student := map[string]any{
		"organization_id": uuid.NewString(),
		"roll_number":     "R100",
		"full_name":       "Ada Lovelace",
		"email":           "ada@example.com",
	}
	payload, _ := json.Marshal(student)

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/students", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		return env.do(t, req)
	}

	if resp := post(); resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp := post(); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate roll number, got %d", resp.Code)
	}

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/students/by-roll/R100", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"full_name":"Ada Lovelace"`) {
		t.Fatalf("expected student lookup, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/students/by-roll/R999", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/students/not-a-uuid", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed org id, got %d", resp.Code)
	}

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/students/"+uuid.NewString(), nil))
	if resp.Code != http.StatusOK || strings.TrimSpace(resp.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestDashboardEndpoint(t *testing.T) {
	env := newTestEnv(t, encoded())
	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/dashboard/"+uuid.NewString(), nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"totalStudents", "totalStaff", "totalDepartments", "totalClasses", "departmentData"} {
		if _, ok := out[key]; !ok {
			t.Fatalf("missing %s in %v", key, out)
		}
	}
}

func TestRegisterLoginProfile(t *testing.T) {
	env := newTestEnv(t, encoded())

	register, _ := json.Marshal(map[string]string{"name": "Admin", "email": "admin@example.com", "password": "secret1"})
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, jsonRequest(http.MethodPost, "/register", register))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	login, _ := json.Marshal(map[string]string{"email": "admin@example.com", "password": "secret1"})
	resp = httptest.NewRecorder()
	env.router.ServeHTTP(resp, jsonRequest(http.MethodPost, "/login", login))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &token); err != nil || token.TokenType != "bearer" {
		t.Fatalf("unexpected token response %s", resp.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	resp = httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"role":"admin"`) {
		t.Fatalf("unexpected profile response %d: %s", resp.Code, resp.Body.String())
	}

	bad, _ := json.Marshal(map[string]string{"email": "admin@example.com", "password": "nope"})
	resp = httptest.NewRecorder()
	env.router.ServeHTTP(resp, jsonRequest(http.MethodPost, "/login", bad))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func jsonRequest(method, path string, body []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func buildMultipartBody(t *testing.T, contentType string, payload []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="face"; filename="upload"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

func buildTestToken(t *testing.T, subject string) string {
	t.Helper()

	claims := auth.Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutes(router, Services{Readiness: map[string]Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return context.DeadlineExceeded }),
	}}, auth.JWTMiddleware(testJWTSecret, ""))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Checks["postgres"] != "ok" || body.Checks["redis"] != "unavailable" {
		t.Fatalf("unexpected checks: %v", body.Checks)
	}
}
