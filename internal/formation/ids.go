package formation

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// hashID returns "<namespace>_<12 hex>" derived from namespace and key.
func hashID(namespace, key string) string {
	sum := blake2b.Sum256([]byte(namespace + "\x00" + key))
	return namespace + "_" + hex.EncodeToString(sum[:6])
}

func dropID(examID, discipline, subtopic string, level int) string {
	return hashID("drop", strings.Join([]string{examID, discipline, subtopic, strconv.Itoa(level)}, "|"))
}

func trackID(examID, discipline string, level int) string {
	return hashID("track", strings.Join([]string{examID, discipline, strconv.Itoa(level)}, "|"))
}

func blockID(examID, discipline string, level int) string {
	return hashID("block", strings.Join([]string{examID, discipline, strconv.Itoa(level)}, "|"))
}

func moduleID(examID, name string) string {
	return hashID("module", examID+"|"+name)
}

// SourceInputs are the values that can change a formation payload.
type SourceInputs struct {
	ExamID           string
	CurriculumStamp  time.Time
	ExamDate         string
	DisciplineCount  int
	ContentKeyCount  int
	LastAssessmentAt *time.Time
}

// SourceHash digests the inputs into a hex string. Equal inputs yield equal hashes.
func SourceHash(in SourceInputs) string {
	stamp := ""
	if !in.CurriculumStamp.IsZero() {
		stamp = in.CurriculumStamp.UTC().Format(time.RFC3339Nano)
	}
	last := "none"
	if in.LastAssessmentAt != nil {
		last = in.LastAssessmentAt.UTC().Format(time.RFC3339Nano)
	}
	base := strings.Join([]string{
		in.ExamID,
		stamp,
		strings.TrimSpace(in.ExamDate),
		strconv.Itoa(in.DisciplineCount),
		strconv.Itoa(in.ContentKeyCount),
		last,
	}, "|")
	sum := blake2b.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])
}
