package api

import (
	"net/http"
	"strconv"
)

const maxSearchSize = 100

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		jsonError(w, "search index not available", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query().Get("q")
	if q == "" {
		jsonError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}

	size := 10
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "size must be a positive integer", http.StatusBadRequest)
			return
		}
		size = min(n, maxSearchSize)
	}

	res, err := s.search.Search(q, size)
	if err != nil {
		s.log.Error("search", "query", q, "error", err)
		jsonError(w, "search failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
