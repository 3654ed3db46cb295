// Package demo synthesizes blood-donation events for local stacks that have
// no scraped export to import.
package demo

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pdnchat/pdnchat/internal/dataset"
)

type venue struct {
	organizer string
	location  string
}

var venues = []venue{
	{"PUSAT DARAH NEGARA", "PUSAT DARAH NEGARA, JALAN TUN RAZAK, KUALA LUMPUR"},
	{"KIPMALL BANGI", "KIPMALL BANGI, LEVEL 1 & 2, BANGI"},
	{"MASJID AL-AKHIRIN", "MASJID AL-AKHIRIN, BUKIT JELUTONG, SHAH ALAM"},
	{"AEON MALL SEREMBAN 2", "AEON MALL SEREMBAN 2, CONCOURSE, SEREMBAN"},
	{"UNIVERSITI MALAYA", "DEWAN TUNKU CANSELOR, UNIVERSITI MALAYA, KUALA LUMPUR"},
	{"HOSPITAL SERDANG", "HOSPITAL SERDANG, KAJANG"},
	{"MID VALLEY MEGAMALL", "MID VALLEY MEGAMALL, CENTRE COURT, KUALA LUMPUR"},
	{"IOI CITY MALL", "IOI CITY MALL, LG CONCOURSE, PUTRAJAYA"},
}

var titles = []string{
	"KEMPEN DERMA DARAH",
	"PROGRAM DERMA DARAH",
	"PUSAT PENDERMAAN STATIK",
	"KARNIVAL DERMA DARAH",
}

var sessions = [][2]string{
	{"9.00 PAGI", "1.00 T/HARI"},
	{"10.00 PAGI", "4.00 PETANG"},
	{"11.00 PAGI", "5.00 PETANG"},
	{"2.00 PETANG", "7.00 MALAM"},
	{"SESI 1 8.30 PAGI – 12.30 T/HARI", "SESI 2 2.00 PETANG – 5.00 PETANG"},
}

var targets = []int64{0, 50, 80, 100, 150, 200, 300}

type Generator struct {
	rnd      *rand.Rand
	sequence int64
	// MaxPerDay bounds how many events one date gets.
	MaxPerDay int
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed)), MaxPerDay: 6}
}

// Events returns events for days consecutive dates starting at start. Some
// dates get no events, the way the published calendar has gaps.
func (g *Generator) Events(start time.Time, days int) []dataset.Event {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	maxPerDay := g.MaxPerDay
	if maxPerDay <= 0 {
		maxPerDay = 1
	}
	var events []dataset.Event
	for day := 0; day < days; day++ {
		date := start.AddDate(0, 0, day)
		count := g.rnd.Intn(maxPerDay + 1)
		for i := 0; i < count; i++ {
			events = append(events, g.next(date))
		}
	}
	return events
}

func (g *Generator) next(date time.Time) dataset.Event {
	g.sequence++
	v := venues[g.rnd.Intn(len(venues))]
	session := sessions[g.rnd.Intn(len(sessions))]
	return dataset.Event{
		EventDay:              date.Weekday().String(),
		EventDate:             date,
		EventTitle:            titles[g.rnd.Intn(len(titles))],
		EventURL:              fmt.Sprintf("https://pdn.gov.my/events/demo-%06d", g.sequence),
		Organizer:             v.organizer,
		BloodDonationLocation: v.location,
		StartTime:             session[0],
		EndTime:               session[1],
		BloodDonorTarget:      targets[g.rnd.Intn(len(targets))],
	}
}
