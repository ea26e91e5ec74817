package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatstore/pkg/chat"
	"chatstore/pkg/utils"
)

func (s *Server) registerAdmin(r *mux.Router) {
	r.HandleFunc("/admin/sweep", s.runSweep).Methods(http.MethodPost)
	r.HandleFunc("/admin/stats", s.storeStats).Methods(http.MethodGet)
}

// runSweep triggers both lifecycle jobs immediately, outside the cron
// cadence. Partial failures are reported per job, not as an HTTP error:
// the run itself completed.
func (s *Server) runSweep(w http.ResponseWriter, r *http.Request) {
	reports, err := s.sw.RunAll(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	type jobOut struct {
		Job     string `json:"job"`
		Scanned int    `json:"scanned"`
		Updated int    `json:"updated"`
		Failed  string `json:"failed,omitempty"`
	}
	out := make([]jobOut, 0, len(reports))
	for _, rep := range reports {
		j := jobOut{Job: rep.Job, Scanned: rep.Scanned, Updated: rep.Updated}
		if rep.Failed != nil {
			j.Failed = rep.Failed.Error()
		}
		out = append(out, j)
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"jobs": out})
}

// storeStats reports per-table row counts. A full scan per table, so this
// sits behind the admin surface, not a request path.
func (s *Server) storeStats(w http.ResponseWriter, r *http.Request) {
	tables := []string{chat.TableChats, chat.TableUserChats, chat.TableChatMessages, chat.TableUserSettings}
	counts := make(map[string]int, len(tables))
	for _, table := range tables {
		items, err := s.st.Scan(table, nil)
		if err != nil {
			writeErr(w, err)
			return
		}
		counts[table] = len(items)
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"rows": counts})
}
