// Package mocksams implements a minimal stand-in for the SAMS portal API:
// token issuance plus the paginated student and institute endpoints. It backs
// local development of the mirror stage without portal credentials.
package mocksams

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
)

// Call records a request made to the mock portal.
type Call struct {
	Method string
	Path   string
}

// sliceKey addresses one student data slice the way the portal does.
type sliceKey struct {
	Module       string
	AcademicYear int
	SourceOfFund string
}

// Server serves a fixed set of portal records. Zero value is not usable; use
// New.
type Server struct {
	username string
	password string
	token    string
	pageSize int

	mu         sync.Mutex
	calls      []Call
	students   map[sliceKey][]map[string]any
	institutes map[sliceKey][]map[string]any
}

// New constructs a mock portal that accepts the given credentials and issues
// token for them. pageSize bounds student responses; institutes are returned
// whole, matching the real portal.
func New(username, password, token string, pageSize int) *Server {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Server{
		username:   username,
		password:   password,
		token:      token,
		pageSize:   pageSize,
		students:   make(map[sliceKey][]map[string]any),
		institutes: make(map[sliceKey][]map[string]any),
	}
}

// AddStudents registers student records for one module/year/fund slice.
// sourceOfFund is the portal's numeric string ("1" or "5"); pass "" for
// modules without the funding split.
func (s *Server) AddStudents(module string, year int, sourceOfFund string, records []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sliceKey{Module: module, AcademicYear: year, SourceOfFund: sourceOfFund}
	s.students[k] = append(s.students[k], records...)
}

// AddInstitutes registers institute records for one module/year slice.
func (s *Server) AddInstitutes(module string, year int, records []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sliceKey{Module: module, AcademicYear: year}
	s.institutes[k] = append(s.institutes[k], records...)
}

// Calls returns a snapshot of requests made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Handler returns an http.Handler serving the mock portal API under /api/.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/getDPICtoken", s.handleToken)
	mux.HandleFunc("/api/GetDPICStudentData", s.handleStudents)
	mux.HandleFunc("/api/GetDPICInstituteData", s.handleInstitutes)
	return mux
}

func (s *Server) recordCall(r *http.Request) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
	s.mu.Unlock()
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if creds.Username != s.username || creds.Password != s.password {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]string{"Token_No": s.token})
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+s.token {
		http.Error(w, "missing or invalid token", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if !s.authorize(w, r) {
		return
	}
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("AcademicYear"))
	if err != nil {
		http.Error(w, "bad AcademicYear", http.StatusBadRequest)
		return
	}
	k := sliceKey{
		Module:       q.Get("Module"),
		AcademicYear: year,
		SourceOfFund: q.Get("SourceOfFund"),
	}

	s.mu.Lock()
	records := s.students[k]
	s.mu.Unlock()

	// Without a PageNumber the whole slice comes back in one response.
	if q.Get("PageNumber") == "" {
		writeJSON(w, records)
		return
	}
	page, err := strconv.Atoi(q.Get("PageNumber"))
	if err != nil || page < 1 {
		http.Error(w, "bad PageNumber", http.StatusBadRequest)
		return
	}
	lo := (page - 1) * s.pageSize
	if lo >= len(records) {
		writeJSON(w, []map[string]any{})
		return
	}
	hi := lo + s.pageSize
	if hi > len(records) {
		hi = len(records)
	}
	writeJSON(w, records[lo:hi])
}

func (s *Server) handleInstitutes(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if !s.authorize(w, r) {
		return
	}
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("AcademicYear"))
	if err != nil {
		http.Error(w, "bad AcademicYear", http.StatusBadRequest)
		return
	}
	k := sliceKey{Module: q.Get("Module"), AcademicYear: year}

	s.mu.Lock()
	records := s.institutes[k]
	s.mu.Unlock()
	writeJSON(w, records)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		v = []map[string]any{}
	}
	_ = json.NewEncoder(w).Encode(v)
}
