package fakebackend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Import は受信したインポートリクエスト
type Import struct {
	ProjectName   string
	AnatomyPreset string
	ContentType   string
	Size          int
}

// Job は一覧エンドポイントが返すジョブ
type Job struct {
	Project     string    `json:"project"`
	User        string    `json:"user"`
	UploadID    string    `json:"uploadId"`
	ProcessID   *string   `json:"processId,omitempty"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Preset はプリセット一覧エンドポイントが返すプリセット
type Preset struct {
	Name    string `json:"name"`
	Primary bool   `json:"primary"`
}

// Server はインポートアドオンAPIを模したテスト用サーバー
type Server struct {
	*httptest.Server

	AddonName    string
	AddonVersion string
	APIKey       string

	mu          sync.Mutex
	imports     []Import
	jobs        []Job
	presets     []Preset
	failImports map[string]int
	failList    int
	failPatch   int
	listCalls   int
	patches     map[string]string
}

// New はテスト用サーバーを起動します
func New(addonName, addonVersion string) *Server {
	s := &Server{
		AddonName:    addonName,
		AddonVersion: addonVersion,
		failImports:  make(map[string]int),
		patches:      make(map[string]string),
	}

	r := mux.NewRouter()
	r.Use(s.authMiddleware)
	addon := r.PathPrefix("/api/addons/{name}/{version}").Subrouter()
	addon.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)
	addon.HandleFunc("/list", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/events/{id}", s.handlePatchEvent).Methods(http.MethodPatch)
	r.HandleFunc("/api/anatomy/presets", s.handlePresets).Methods(http.MethodGet)

	s.Server = httptest.NewServer(r)
	return s
}

// SetJobs は一覧エンドポイントが返すジョブを置き換えます
func (s *Server) SetJobs(jobs ...Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append([]Job(nil), jobs...)
}

// SetPresets はプリセット一覧を置き換えます
func (s *Server) SetPresets(presets ...Preset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presets = append([]Preset(nil), presets...)
}

// FailImport は指定プロジェクト名のインポートを status で失敗させます
func (s *Server) FailImport(projectName string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failImports[projectName] = status
}

// FailList は一覧エンドポイントを status で失敗させます（0で解除）
func (s *Server) FailList(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failList = status
}

// FailPatch はイベント更新を status で失敗させます（0で解除）
func (s *Server) FailPatch(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPatch = status
}

// Imports は受信したインポートリクエストを返します
func (s *Server) Imports() []Import {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Import(nil), s.imports...)
}

// ListCalls は一覧エンドポイントの呼び出し回数を返します
func (s *Server) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

// Patches はイベントIDごとに最後に書き込まれたステータスを返します
func (s *Server) Patches() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.patches))
	for k, v := range s.patches {
		out[k] = v
	}
	return out
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.APIKey != "" && r.Header.Get("X-Api-Key") != s.APIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkAddon(w http.ResponseWriter, r *http.Request) bool {
	vars := mux.Vars(r)
	if vars["name"] != s.AddonName || vars["version"] != s.AddonVersion {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "addon not found"})
		return false
	}
	return true
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if !s.checkAddon(w, r) {
		return
	}

	project := r.Header.Get("X-Ayon-Project-Name")
	if project == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Missing project name"})
		return
	}

	n, err := io.Copy(io.Discard, r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if status, ok := s.failImports[project]; ok {
		writeJSON(w, status, map[string]string{"detail": fmt.Sprintf("import of %s failed", project)})
		return
	}

	s.imports = append(s.imports, Import{
		ProjectName:   project,
		AnatomyPreset: r.Header.Get("X-Ayon-Anatomy-Preset"),
		ContentType:   r.Header.Get("Content-Type"),
		Size:          int(n),
	})

	now := time.Now().UTC()
	s.jobs = append([]Job{{
		Project:   project,
		User:      "admin",
		UploadID:  uuid.NewString(),
		Status:    "in_progress",
		CreatedAt: now,
		UpdatedAt: now,
	}}, s.jobs...)

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if !s.checkAddon(w, r) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.listCalls++
	if s.failList != 0 {
		writeJSON(w, s.failList, map[string]string{"detail": "list failed"})
		return
	}
	jobs := s.jobs
	if jobs == nil {
		jobs = []Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handlePatchEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failPatch != 0 {
		writeJSON(w, s.failPatch, map[string]string{"detail": "patch failed"})
		return
	}

	found := false
	for i := range s.jobs {
		if s.jobs[i].ProcessID != nil && *s.jobs[i].ProcessID == id {
			s.jobs[i].Status = body.Status
			s.jobs[i].UpdatedAt = time.Now().UTC()
			found = true
		}
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "event not found"})
		return
	}
	s.patches[id] = body.Status
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets := s.presets
	if presets == nil {
		presets = []Preset{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"presets": presets})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StringPtr は文字列のポインタを返します
func StringPtr(s string) *string {
	return &s
}
