package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/san-kum/qlab/internal/concept"
	"github.com/san-kum/qlab/internal/export"
	"github.com/san-kum/qlab/internal/session"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	n := len(s.sessions)
	s.mu.RUnlock()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": n,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Concepts    []concept.Descriptor
		Comparisons []concept.ComparisonRow
		Steps       []concept.IntroStep
	}{concept.All(), concept.Comparisons(), concept.IntroSteps()}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		s.log.Error().Err(err).Msg("failed to render index")
	}
}

func (s *Server) handleConcepts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, concept.All())
}

func (s *Server) handleComparisons(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, concept.Comparisons())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ls := s.newSession()
	s.writeJSON(w, http.StatusCreated, ls.view())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.writeJSON(w, http.StatusOK, ls.view())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	s.mu.Lock()
	delete(s.sessions, ls.id)
	s.mu.Unlock()

	ls.mu.Lock()
	ls.vis.Close()
	ls.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req struct {
		Topic string `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ex, err := ls.ctrl.Select(concept.ID(req.Topic))
	if errors.Is(err, session.ErrUnknownTopic) {
		s.writeError(w, http.StatusBadRequest, "unknown topic: "+req.Topic)
		return
	}
	ls.sync()
	s.finish(w, r, ls, ex)
}

func (s *Server) handleMeasure(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	ex := ls.ctrl.Measure()
	ls.sync()
	s.finish(w, r, ls, ex)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	ls.ctrl.ResetLab()
	ls.sync()
	s.writeJSON(w, http.StatusOK, ls.view())
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.finish(w, r, ls, ls.ctrl.Ask(req.Text))
}

// finish waits for the exchange, if any, and answers with the session. The
// exchange outlives a dropped client so the transcript stays consistent.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, ls *labSession, ex *session.Exchange) {
	ex.Run(context.WithoutCancel(r.Context()))
	s.writeJSON(w, http.StatusOK, ls.view())
}

// handleFrames streams the session's drawing as SVG documents, one text
// message per frame.
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.Origins})
	if err != nil {
		s.log.Warn().Err(err).Str("session", ls.id).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	ls.mu.Lock()
	ls.streams++
	ls.mu.Unlock()
	defer func() {
		ls.mu.Lock()
		ls.streams--
		ls.lastSeen = time.Now()
		ls.mu.Unlock()
	}()

	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(s.frame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case now := <-ticker.C:
			ls.mu.Lock()
			ls.vis.Advance(now)
			frame := export.SceneSVG(ls.vis.Surface())
			ls.mu.Unlock()

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, []byte(frame))
			cancel()
			if err != nil {
				status := websocket.CloseStatus(err)
				if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
					s.log.Debug().Err(err).Str("session", ls.id).Msg("frame stream ended")
				}
				return
			}
		}
	}
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="zh">
<head>
<meta charset="utf-8">
<title>量子通信实验室</title>
<style>
body { background: #020617; color: #e2e8f0; font-family: sans-serif; margin: 0; display: flex; }
aside { width: 280px; padding: 1rem; border-right: 1px solid #1e293b; }
main { flex: 1; padding: 1rem; }
button { background: #1e293b; color: #e2e8f0; border: 1px solid #334155; padding: .4rem .8rem; margin: .2rem 0; cursor: pointer; }
#stage { width: 600px; height: 400px; border: 1px solid #1e293b; border-radius: 8px; overflow: hidden; }
#chat { max-height: 320px; overflow-y: auto; margin-top: 1rem; }
.user { color: #38bdf8; } .assistant { color: #e2e8f0; }
table { font-size: .85rem; border-collapse: collapse; } td { padding: .2rem .4rem; }
</style>
</head>
<body>
<aside>
  <h2>实验课题</h2>
  {{range .Concepts}}
  <div><button data-topic="{{.ID}}">{{.Title}}</button><br><small>{{.Description}}</small></div>
  {{end}}
  <h3>量子 vs 传统：核心差异</h3>
  <table>
  {{range .Comparisons}}<tr><td>{{.Feature}}</td><td>{{.Traditional}}</td><td>{{.Quantum}}</td></tr>{{end}}
  </table>
</aside>
<main>
  <div>MODE: <b id="mode">IDLE</b> <button id="action" hidden></button></div>
  <div id="stage"></div>
  <div id="chat"></div>
  <form id="ask"><input id="text" size="60" placeholder="向 AI 助理提问..."><button>发送</button></form>
  <ol>{{range .Steps}}<li><b>{{.Title}}</b> {{.Content}}</li>{{end}}</ol>
</main>
<script>
let id = null;
const api = (path, body) => fetch('/api/sessions/' + id + path, {
  method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(body || {})
}).then(r => r.json()).then(show);
function show(s) {
  document.getElementById('mode').textContent = s.mode.toUpperCase();
  const a = document.getElementById('action');
  a.hidden = !s.action_label; a.textContent = s.action_label || '';
  a.dataset.measured = s.selection.measured;
  const chat = document.getElementById('chat');
  chat.innerHTML = '';
  for (const e of s.transcript) {
    const p = document.createElement('p'); p.className = e.speaker; p.textContent = e.text; chat.appendChild(p);
  }
  if (s.typing) { const p = document.createElement('p'); p.textContent = '…'; chat.appendChild(p); }
  chat.scrollTop = chat.scrollHeight;
}
fetch('/api/sessions/', {method: 'POST'}).then(r => r.json()).then(s => {
  id = s.id; show(s);
  const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
  const ws = new WebSocket(proto + location.host + '/api/sessions/' + id + '/frames');
  ws.onmessage = m => { document.getElementById('stage').innerHTML = m.data; };
});
addEventListener('pagehide', () => {
  if (id) fetch('/api/sessions/' + id, {method: 'DELETE', keepalive: true});
});
document.querySelectorAll('[data-topic]').forEach(b => b.onclick = () => api('/select', {topic: b.dataset.topic}));
document.getElementById('action').onclick = e => api(e.target.dataset.measured === 'true' ? '/reset' : '/measure');
document.getElementById('ask').onsubmit = e => {
  e.preventDefault(); const t = document.getElementById('text'); api('/ask', {text: t.value}); t.value = '';
};
</script>
</body>
</html>
`))
