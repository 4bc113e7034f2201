package command

// DistanceReport marks a status word carrying a distance reading.
const DistanceReport int32 = 0x40000000

// ReportKind selects which distance statistic a report carries.
type ReportKind int32

// Distance statistics.
const (
	ReportCurrent ReportKind = 0x08000000
	ReportAverage ReportKind = 0x04000000
	ReportMax     ReportKind = 0x02000000
	ReportMin     ReportKind = 0x01000000

	reportBits = DistanceReport | int32(ReportCurrent) | int32(ReportAverage) | int32(ReportMax) | int32(ReportMin)
)

// EncodeDistanceReport builds a report word for a distance in mm.
func EncodeDistanceReport(kind ReportKind, mm int) int32 {
	return DistanceReport | int32(kind) | (int32(mm) &^ reportBits)
}

// DecodeDistanceReport recovers the statistic and value from a report
// word.  ok is false for anything that isn't a distance report.
func DecodeDistanceReport(raw int32) (ReportKind, int, bool) {
	kind := ReportKind(raw&reportBits) &^ ReportKind(DistanceReport)
	if raw&DistanceReport == 0 {
		return 0, 0, false
	}
	switch kind {
	case ReportCurrent, ReportAverage, ReportMax, ReportMin:
		return kind, int(raw &^ reportBits), true
	}
	return 0, 0, false
}

func (k ReportKind) String() string {
	switch k {
	case ReportCurrent:
		return "current"
	case ReportAverage:
		return "average"
	case ReportMax:
		return "max"
	case ReportMin:
		return "min"
	}
	return "unknown"
}
