package peer

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// AuditField marks a log entry as belonging to the per-port audit trail
// (§6: "<unix_time>:<peer_id>-><raw_msg>\n" appended to
// outputfile_<port>.txt for every accepted inbound message), distinct
// from the human-readable console log the rest of this package writes.
const AuditField = "audit_raw"

// FileAuditHook appends one line per accepted message to an
// outputfile_<port>.txt-style writer, reusing the same logrus call site
// callers already use for their console logging instead of a separate
// os.File.Write path.
type FileAuditHook struct {
	w io.Writer
}

// NewFileAuditHook wraps w (typically an *os.File opened by the caller)
// as a logrus hook.
func NewFileAuditHook(w io.Writer) *FileAuditHook {
	return &FileAuditHook{w: w}
}

// Levels restricts this hook to Info, the level AuditMessage logs at.
func (h *FileAuditHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.InfoLevel}
}

// Fire writes the audit line if the entry carries AuditField; entries
// without it (ordinary connection/lifecycle logging) are ignored.
func (h *FileAuditHook) Fire(e *logrus.Entry) error {
	raw, ok := e.Data[AuditField]
	if !ok {
		return nil
	}
	peerID, _ := e.Data["peer"].(string)
	_, err := fmt.Fprintf(h.w, "%d:%s->%x\n", e.Time.Unix(), peerID, raw)
	return err
}

// AuditMessage logs one accepted inbound message through log at Info
// level, tagged so that a FileAuditHook attached to log's logger appends
// it to the audit file; loggers without the hook simply print it as a
// normal structured line.
func AuditMessage(log *logrus.Entry, peerID string, msg []byte) {
	log.WithFields(logrus.Fields{"peer": peerID, AuditField: msg}).Info("accepted message")
}
