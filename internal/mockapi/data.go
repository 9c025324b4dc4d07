package mockapi

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
)

type book struct {
	ID          int64
	Title       string
	Author      string
	Description string
	Price       decimal.Decimal
	CategoryID  int64
	Discount    float64
	Image       string
	Document    string
	CreatedAt   time.Time
}

type purchase struct {
	ID        int64
	BookID    int64
	Quantity  int
	UnitPrice decimal.Decimal
	CreatedAt time.Time
}

type loan struct {
	ID         int64
	BookID     int64
	UserID     int64
	BorrowDate time.Time
	DueDate    time.Time
	Status     string
}

type user struct {
	ID      int64
	Name    string
	Email   string
	Balance decimal.Decimal
}

type credit struct {
	ID        int64
	UserID    int64
	Amount    decimal.Decimal
	CreatedAt time.Time
}

type coupon struct {
	ID       int64
	Code     string
	Discount float64
}

type notification struct {
	ID        int64
	Title     string
	Message   string
	CreatedAt time.Time
}

type category struct {
	ID   int64
	Name string
}

// dataset is the backend's state. Callers hold Server.mu.
type dataset struct {
	nextID        int64
	categories    []category
	books         []book
	purchases     []purchase
	loans         []loan
	users         []user
	points        []credit
	topups        []credit
	coupons       []coupon
	notifications []notification
}

func (d *dataset) id() int64 {
	d.nextID++
	return d.nextID
}

var (
	seedTitles = []string{
		"Dune", "Emma", "Beloved", "Ulysses", "Middlemarch", "Dracula",
		"Frankenstein", "Persuasion", "Solaris", "Neuromancer", "Kindred",
		"Rebecca", "Hyperion", "Ficciones", "Pedro Paramo", "The Dispossessed",
		"Invisible Cities", "Things Fall Apart", "Wide Sargasso Sea", "Stoner",
	}
	seedAuthors = []string{
		"Herbert", "Austen", "Morrison", "Joyce", "Eliot", "Stoker",
		"Shelley", "Austen", "Lem", "Gibson", "Butler",
		"du Maurier", "Simmons", "Borges", "Rulfo", "Le Guin",
		"Calvino", "Achebe", "Rhys", "Williams",
	}
	seedUsers = []string{"Ada", "Grace", "Linus", "Barbara", "Ken"}
)

// seed fills a dataset deterministically from rng, with timestamps in the
// 60 days before now.
func seed(rng *rand.Rand, now time.Time) *dataset {
	d := &dataset{}
	now = now.UTC().Truncate(time.Second)
	day := func(back int) time.Time { return now.AddDate(0, 0, -back) }

	for _, name := range []string{"Fiction", "Science Fiction", "Classics"} {
		d.categories = append(d.categories, category{ID: d.id(), Name: name})
	}
	for i, title := range seedTitles {
		cents := 500 + rng.IntN(3000)
		b := book{
			ID:         d.id(),
			Title:      title,
			Author:     seedAuthors[i],
			Price:      decimal.New(int64(cents), -2),
			CategoryID: d.categories[i%len(d.categories)].ID,
			CreatedAt:  day(60 - i*2),
		}
		b.Description = fmt.Sprintf("%s by %s.", b.Title, b.Author)
		if i%3 == 0 {
			b.Discount = float64(5 * (1 + rng.IntN(4)))
		}
		// Stored paths take every shape the real backend produces.
		switch i % 4 {
		case 0:
			b.Image = fmt.Sprintf("covers/%d.jpg", b.ID)
		case 1:
			b.Image = fmt.Sprintf("public/storage/covers/%d.jpg", b.ID)
		case 2:
			b.Image = fmt.Sprintf("/storage/covers/%d.jpg", b.ID)
		}
		if i%2 == 0 {
			b.Document = fmt.Sprintf("./pdfs/%d.pdf", b.ID)
		}
		d.books = append(d.books, b)
	}
	for i, name := range seedUsers {
		d.users = append(d.users, user{
			ID:      d.id(),
			Name:    name,
			Email:   fmt.Sprintf("%s@example.com", name),
			Balance: decimal.NewFromInt(int64(10 * i)),
		})
	}
	for n := 0; n < 80; n++ {
		b := d.books[rng.IntN(len(d.books))]
		at := day(rng.IntN(60)).Add(-time.Duration(rng.IntN(86400)) * time.Second)
		d.purchases = append(d.purchases, purchase{
			ID:        d.id(),
			BookID:    b.ID,
			Quantity:  1 + rng.IntN(3),
			UnitPrice: b.Price,
			CreatedAt: at,
		})
	}
	statuses := []string{"borrowed", "returned", "overdue"}
	for n := 0; n < 25; n++ {
		borrowed := day(rng.IntN(60))
		d.loans = append(d.loans, loan{
			ID:         d.id(),
			BookID:     d.books[rng.IntN(len(d.books))].ID,
			UserID:     d.users[rng.IntN(len(d.users))].ID,
			BorrowDate: borrowed,
			DueDate:    borrowed.AddDate(0, 0, 14),
			Status:     statuses[n%len(statuses)],
		})
	}
	for _, c := range []coupon{{Code: "WELCOME10", Discount: 10}, {Code: "SPRING25", Discount: 25}} {
		c.ID = d.id()
		d.coupons = append(d.coupons, c)
	}
	for i, u := range d.users[:3] {
		d.points = append(d.points, credit{ID: d.id(), UserID: u.ID, Amount: decimal.NewFromInt(50), CreatedAt: day(10 + i)})
		d.topups = append(d.topups, credit{ID: d.id(), UserID: u.ID, Amount: decimal.NewFromInt(20), CreatedAt: day(5 + i)})
	}
	for i, msg := range []string{"New user registered", "Book returned late", "Coupon SPRING25 used"} {
		d.notifications = append(d.notifications, notification{
			ID:        d.id(),
			Title:     msg,
			Message:   msg + ".",
			CreatedAt: day(i),
		})
	}
	return d
}

func (d *dataset) bookByID(id int64) (int, bool) {
	for i, b := range d.books {
		if b.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (d *dataset) userByID(id int64) (int, bool) {
	for i, u := range d.users {
		if u.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (d *dataset) categoryExists(id int64) bool {
	for _, c := range d.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}
