package locktimer

import (
	"strconv"
	"strings"
	"time"
)

// Header is the first line of every log file.
const Header = "TimeStart,ThreadId,ThreadName,LockName,LockHash,LockTaken,EnterTotal,InsideTotal,GrandTotal,PreEnter,PostEnter,PreExit,PostExit\n"

// TimeStartLayout formats the TimeStart column.
const TimeStartLayout = "2006-01-02 15:04:05.000000"

var fieldSanitizer = strings.NewReplacer(",", "", `"`, "", "'", "", "\r", "", "\n", "")

// sanitizeField strips everything that could shift or quote a CSV column.
func sanitizeField(s string) string {
	if !strings.ContainsAny(s, ",\"'\r\n") {
		return s
	}
	return fieldSanitizer.Replace(s)
}

// appendRow appends one CSV row for s to dst. Tick values are normalized to
// whole milliseconds first and the totals are derived from the normalized
// values, so EnterTotal + InsideTotal == GrandTotal holds for every row.
func appendRow(dst []byte, s *Sample, ticksPerMs int64) []byte {
	preEnter := s.PreEnter / ticksPerMs
	postEnter := s.PostEnter / ticksPerMs
	preExit := s.PreExit / ticksPerMs
	postExit := s.PostExit / ticksPerMs

	dst = s.TimeStart.AppendFormat(dst, TimeStartLayout)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, s.GoroutineID, 10)
	dst = append(dst, ',')
	dst = append(dst, sanitizeField(s.GoroutineName)...)
	dst = append(dst, ',')
	dst = append(dst, sanitizeField(s.Label)...)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(s.LockHash), 16)
	dst = append(dst, ',')
	if s.LockTaken {
		dst = append(dst, '1')
	} else {
		dst = append(dst, '0')
	}
	for _, v := range [...]int64{
		postEnter - preEnter,
		postExit - postEnter,
		postExit - preEnter,
		preEnter, postEnter, preExit, postExit,
	} {
		dst = append(dst, ',')
		dst = strconv.AppendInt(dst, v, 10)
	}
	return append(dst, '\n')
}

// logFileName is the base name of a log file created at t.
func logFileName(t time.Time, attempt int) string {
	name := "LockTimer-Verbose-" + t.Format("20060102-150405.000000")
	if attempt > 0 {
		name += "-" + strconv.Itoa(attempt)
	}
	return name + ".log"
}
