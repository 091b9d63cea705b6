package catalog

import "github.com/shopspring/decimal"

type Author struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	LastName    string `json:"last_name"`
	Nationality string `json:"nationality"`
	BirthDate   string `json:"birth_date"`
	Biography   string `json:"biography"`
	Website     string `json:"website"`
}

type Publisher struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Website string `json:"website"`
	Country string `json:"country"`
}

type Book struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	ISBN        string          `json:"isbn"`
	AuthorID    int64           `json:"author_id"`
	PublisherID int64           `json:"publisher_id"`
	Year        int64           `json:"year"`
	Genre       string          `json:"genre"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
	Description string          `json:"description"`
}
