// Package dates resolves Spanish natural-language period expressions
// ("noviembre", "este mes", "ultimos 7 dias") into ISO date ranges.
// Ranges use an exclusive upper bound: "ayer" on 2025-12-23 resolves
// to [2025-12-22, 2025-12-23).
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Range is a half-open [From, To) interval of ISO dates.
type Range struct {
	From string `json:"date_from"`
	To   string `json:"date_to"`
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r.From == "" && r.To == ""
}

const isoDate = "2006-01-02"

// spanishMonths lists month tokens in lookup order. Full names come
// before abbreviations so "marzo" wins over "mar".
var spanishMonths = []struct {
	name  string
	month time.Month
}{
	{"enero", time.January}, {"febrero", time.February}, {"marzo", time.March},
	{"abril", time.April}, {"mayo", time.May}, {"junio", time.June},
	{"julio", time.July}, {"agosto", time.August}, {"septiembre", time.September},
	{"octubre", time.October}, {"noviembre", time.November}, {"diciembre", time.December},
	{"ene", time.January}, {"feb", time.February}, {"mar", time.March},
	{"abr", time.April}, {"may", time.May}, {"jun", time.June},
	{"jul", time.July}, {"ago", time.August}, {"sept", time.September},
	{"sep", time.September}, {"oct", time.October}, {"nov", time.November},
	{"dic", time.December},
}

var monthNames = map[time.Month]string{
	time.January: "enero", time.February: "febrero", time.March: "marzo",
	time.April: "abril", time.May: "mayo", time.June: "junio",
	time.July: "julio", time.August: "agosto", time.September: "septiembre",
	time.October: "octubre", time.November: "noviembre", time.December: "diciembre",
}

var quarters = []struct {
	name       string
	start, end time.Month
}{
	{"q1", time.January, time.March}, {"primer trimestre", time.January, time.March}, {"1er trimestre", time.January, time.March},
	{"q2", time.April, time.June}, {"segundo trimestre", time.April, time.June}, {"2do trimestre", time.April, time.June},
	{"q3", time.July, time.September}, {"tercer trimestre", time.July, time.September}, {"3er trimestre", time.July, time.September},
	{"q4", time.October, time.December}, {"cuarto trimestre", time.October, time.December}, {"4to trimestre", time.October, time.December},
}

type monthPattern struct {
	re    *regexp.Regexp
	month time.Month
}

type quarterPattern struct {
	re         *regexp.Regexp
	start, end time.Month
}

var (
	reToday       = regexp.MustCompile(`\bhoy\b`)
	reYesterday   = regexp.MustCompile(`\bayer\b`)
	reThisWeek    = regexp.MustCompile(`\besta\s+semana\b`)
	reLastWeek    = regexp.MustCompile(`\b(semana\s+pasada|ultimas?\s+semana)\b`)
	reThisMonth   = regexp.MustCompile(`\beste\s+mes\b`)
	reLastMonth   = regexp.MustCompile(`\b(mes\s+pasado|ultimo\s+mes)\b`)
	reLastNDays   = regexp.MustCompile(`\bultimos?\s+(\d+)\s+dias?\b`)
	reLastNWeeks  = regexp.MustCompile(`\bultimas?\s+(\d+)\s+semanas?\b`)
	reBareYear    = regexp.MustCompile(`\b(20\d{2})\b`)
	reYearWord    = regexp.MustCompile(`\b(a[ñn]o|year)\b`)
	reYearTail    = regexp.MustCompile(`^\s*(?:de\s+)?\d{4}`)
	reDaySpan     = regexp.MustCompile(`\bdel?\s+(\d{1,2})\s+al?\s+(\d{1,2})\s+de\s+(\w+)(?:\s+(?:de\s+)?(\d{4}))?\b`)
	reSingleDay   = regexp.MustCompile(`\b(\d{1,2})\s+de\s+(\w+)(?:\s+(?:de\s+)?(\d{4}))?\b`)
	reSalesEvent  = regexp.MustCompile(`\b(cyber\s*monday|black\s*friday)\b`)
	reComparisonT = regexp.MustCompile(`\b(?:vs\.?|versus|contra)\b`)

	monthWithYearRes = func() []monthPattern {
		out := make([]monthPattern, 0, len(spanishMonths))
		for _, sm := range spanishMonths {
			re := regexp.MustCompile(`\b` + sm.name + `\s+(?:de\s+)?(\d{4})\b`)
			out = append(out, monthPattern{re: re, month: sm.month})
		}
		return out
	}()

	bareMonthRes = func() []monthPattern {
		out := make([]monthPattern, 0, len(spanishMonths))
		for _, sm := range spanishMonths {
			re := regexp.MustCompile(`\b` + sm.name + `\b`)
			out = append(out, monthPattern{re: re, month: sm.month})
		}
		return out
	}()

	quarterRes = func() []quarterPattern {
		out := make([]quarterPattern, 0, len(quarters))
		for _, qt := range quarters {
			re := regexp.MustCompile(`\b` + qt.name + `\s+(?:de\s+)?(\d{4})\b`)
			out = append(out, quarterPattern{re: re, start: qt.start, end: qt.end})
		}
		return out
	}()

	accentReplacer = strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u",
		"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u",
	)
)

// Normalize lowercases a question and strips vowel accents so keyword
// and period matching can use a single surface form. The letter ñ is
// preserved.
func Normalize(s string) string {
	return accentReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// ExtractRange resolves the first period expression found in the
// question relative to now. It reports false when the question names
// no period. Day-level expressions are matched before month-level
// ones so "15 de diciembre 2025" resolves to one day, not the month.
func ExtractRange(question string, now time.Time) (Range, bool) {
	q := Normalize(question)
	today := truncateToDay(now)

	if reToday.MatchString(q) {
		return dayRange(today), true
	}
	if reYesterday.MatchString(q) {
		return dayRange(today.AddDate(0, 0, -1)), true
	}
	if reThisWeek.MatchString(q) {
		start := startOfWeek(today)
		return newRange(start, start.AddDate(0, 0, 7)), true
	}
	if reLastWeek.MatchString(q) {
		start := startOfWeek(today).AddDate(0, 0, -7)
		return newRange(start, start.AddDate(0, 0, 7)), true
	}
	if reThisMonth.MatchString(q) {
		return monthRange(today.Year(), today.Month()), true
	}
	if reLastMonth.MatchString(q) {
		prev := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return monthRange(prev.Year(), prev.Month()), true
	}
	if m := reLastNDays.FindStringSubmatch(q); m != nil {
		days, _ := strconv.Atoi(m[1])
		return newRange(today.AddDate(0, 0, -days), today.AddDate(0, 0, 1)), true
	}
	if m := reLastNWeeks.FindStringSubmatch(q); m != nil {
		weeks, _ := strconv.Atoi(m[1])
		return newRange(today.AddDate(0, 0, -7*weeks), today.AddDate(0, 0, 1)), true
	}

	// "del 1 al 15 de diciembre [2025]".
	if m := reDaySpan.FindStringSubmatch(q); m != nil {
		if r, ok := daySpanRange(m, today.Year()); ok {
			return r, true
		}
	}

	// "15 de diciembre [2025]".
	if m := reSingleDay.FindStringSubmatch(q); m != nil {
		if r, ok := singleDayRange(m, today.Year()); ok {
			return r, true
		}
	}

	// Month with an explicit year ("noviembre 2025", "nov de 2025").
	for _, mp := range monthWithYearRes {
		if m := mp.re.FindStringSubmatch(q); m != nil {
			year, _ := strconv.Atoi(m[1])
			return monthRange(year, mp.month), true
		}
	}

	// Quarter with year ("q4 2025", "cuarto trimestre de 2025").
	for _, qp := range quarterRes {
		if m := qp.re.FindStringSubmatch(q); m != nil {
			year, _ := strconv.Atoi(m[1])
			start := time.Date(year, qp.start, 1, 0, 0, 0, 0, time.UTC)
			end := time.Date(year, qp.end, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
			return newRange(start, end), true
		}
	}

	// Bare month ("en noviembre") resolves against the current year.
	for _, mp := range bareMonthRes {
		if loc := mp.re.FindStringIndex(q); loc != nil {
			if !reYearTail.MatchString(q[loc[1]:]) {
				return monthRange(today.Year(), mp.month), true
			}
		}
	}

	// Whole year, only when the question talks about a year.
	if m := reBareYear.FindStringSubmatch(q); m != nil && reYearWord.MatchString(q) {
		year, _ := strconv.Atoi(m[1])
		return newRange(
			time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC),
		), true
	}

	// Seasonal sales events cluster in November.
	if reSalesEvent.MatchString(q) {
		year := today.Year()
		if m := reBareYear.FindStringSubmatch(q); m != nil {
			year, _ = strconv.Atoi(m[1])
		}
		return monthRange(year, time.November), true
	}

	return Range{}, false
}

// ExtractComparison splits a "X vs Y" question into two ranges,
// current (left side) and previous (right side). When the right side
// is a period that would land at or after the left side, it is shifted
// back one year so the comparison reads current-vs-prior.
func ExtractComparison(question string, now time.Time) (current, previous Range, ok bool) {
	q := Normalize(question)
	loc := reComparisonT.FindStringIndex(q)
	if loc == nil {
		return Range{}, Range{}, false
	}

	left, right := q[:loc[0]], q[loc[1]:]
	current, okCur := ExtractRange(left, now)
	previous, okPrev := ExtractRange(right, now)
	if !okCur || !okPrev {
		return Range{}, Range{}, false
	}

	if previous.From >= current.From {
		previous = shiftYears(previous, -1)
	}
	return current, previous, true
}

// DefaultRange is the fallback period: the last 30 days, upper bound
// exclusive of tomorrow.
func DefaultRange(now time.Time) Range {
	today := truncateToDay(now)
	return newRange(today.AddDate(0, 0, -30), today.AddDate(0, 0, 1))
}

// AddDays shifts an ISO date by days. Unparseable values come back
// unchanged.
func AddDays(iso string, days int) string {
	d, err := time.Parse(isoDate, iso)
	if err != nil {
		return iso
	}
	return d.AddDate(0, 0, days).Format(isoDate)
}

// FormatContext renders a range as short Spanish text for prompts and
// dashboard subtitles.
func FormatContext(r Range) string {
	if r.IsZero() {
		return "ultimos 30 dias"
	}
	from, err1 := time.Parse(isoDate, r.From)
	to, err2 := time.Parse(isoDate, r.To)
	if err1 != nil || err2 != nil {
		return fmt.Sprintf("%s a %s", r.From, r.To)
	}
	last := to.AddDate(0, 0, -1)

	if from.Equal(last) {
		return from.Format("02/01/2006")
	}
	if from.Year() == last.Year() && from.Month() == last.Month() &&
		from.Day() == 1 && last.AddDate(0, 0, 1).Day() == 1 {
		return fmt.Sprintf("%s %d", monthNames[from.Month()], from.Year())
	}
	return fmt.Sprintf("%s a %s", from.Format("02/01/2006"), last.Format("02/01/2006"))
}

func daySpanRange(m []string, fallbackYear int) (Range, bool) {
	dayStart, _ := strconv.Atoi(m[1])
	dayEnd, _ := strconv.Atoi(m[2])
	month, ok := monthByName(m[3])
	if !ok {
		return Range{}, false
	}
	year := fallbackYear
	if m[4] != "" {
		year, _ = strconv.Atoi(m[4])
	}
	start := time.Date(year, month, dayStart, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, month, dayEnd, 0, 0, 0, 0, time.UTC)
	if start.Day() != dayStart || end.Day() != dayEnd || end.Before(start) {
		return Range{}, false
	}
	return newRange(start, end.AddDate(0, 0, 1)), true
}

func singleDayRange(m []string, fallbackYear int) (Range, bool) {
	day, _ := strconv.Atoi(m[1])
	month, ok := monthByName(m[2])
	if !ok || day < 1 || day > 31 {
		return Range{}, false
	}
	year := fallbackYear
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day {
		return Range{}, false
	}
	return dayRange(d), true
}

func monthByName(name string) (time.Month, bool) {
	for _, sm := range spanishMonths {
		if sm.name == name {
			return sm.month, true
		}
	}
	return 0, false
}

func monthRange(year int, month time.Month) Range {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return newRange(start, start.AddDate(0, 1, 0))
}

func dayRange(day time.Time) Range {
	return newRange(day, day.AddDate(0, 0, 1))
}

func newRange(from, to time.Time) Range {
	return Range{From: from.Format(isoDate), To: to.Format(isoDate)}
}

func shiftYears(r Range, years int) Range {
	from, err1 := time.Parse(isoDate, r.From)
	to, err2 := time.Parse(isoDate, r.To)
	if err1 != nil || err2 != nil {
		return r
	}
	return newRange(from.AddDate(years, 0, 0), to.AddDate(years, 0, 0))
}

func startOfWeek(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
