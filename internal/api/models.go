// Package api provides typed clients for the book-review platform's REST
// resources, layered over the shared apiclient.
package api

// User is the platform identity record, including the aggregate stats the
// server derives (read counts, rating distribution).
type User struct {
	ID                 int            `json:"id"`
	Username           string         `json:"username"`
	FirstName          string         `json:"first_name"`
	LastName           string         `json:"last_name"`
	FullName           string         `json:"full_name"`
	Email              string         `json:"email"`
	Bio                string         `json:"bio"`
	ProfilePicture     string         `json:"profile_picture"`
	IsAdmin            bool           `json:"is_admin"`
	DateJoined         string         `json:"date_joined"`
	BooksReadCount     int            `json:"books_read_count"`
	ReviewsCount       int            `json:"reviews_count"`
	AverageRating      float64        `json:"average_rating"`
	RatingDistribution map[string]int `json:"rating_distribution"`
}

// Genre is a book category.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Book is a catalog entry with its aggregated review stats.
type Book struct {
	ID              int      `json:"id"`
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	Description     string   `json:"description"`
	ISBN            string   `json:"isbn"`
	PublicationDate string   `json:"publication_date"`
	CoverImage      string   `json:"cover_image"`
	GenresDetail    []Genre  `json:"genres_detail,omitempty"`
	CreatedBy       *User    `json:"created_by,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
	AverageRating   float64  `json:"average_rating"`
	ReviewsCount    int      `json:"reviews_count"`
	Reviews         []Review `json:"reviews,omitempty"`
}

// Review is a user's rating and write-up for a book.
type Review struct {
	ID            int    `json:"id"`
	User          int    `json:"user"`
	Book          int    `json:"book"`
	Title         string `json:"title"`
	Body          string `json:"body"`
	Rating        int    `json:"rating"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	UserDetails   *User  `json:"user_details,omitempty"`
	BookDetails   *Book  `json:"book_details,omitempty"`
	CommentsCount int    `json:"comments_count,omitempty"`
}

// Comment is a reply on a review.
type Comment struct {
	ID          int    `json:"id"`
	User        int    `json:"user"`
	Review      int    `json:"review"`
	Body        string `json:"body"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	UserDetails *User  `json:"user_details,omitempty"`
}

// Reading-list status values.
const (
	StatusWantToRead       = "want_to_read"
	StatusCurrentlyReading = "currently_reading"
	StatusRead             = "read"
)

// ReadingListEntry tracks one book on a user's reading list.
type ReadingListEntry struct {
	ID           int     `json:"id"`
	User         int     `json:"user"`
	Book         int     `json:"book"`
	Status       string  `json:"status"`
	DateAdded    string  `json:"date_added"`
	DateStarted  *string `json:"date_started,omitempty"`
	DateFinished *string `json:"date_finished,omitempty"`
	BookDetails  *Book   `json:"book_details,omitempty"`
	UserDetails  *User   `json:"user_details,omitempty"`
}

// Page is the list-endpoint envelope.
type Page[T any] struct {
	Objects  []T    `json:"objects"`
	Count    int    `json:"count"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// AuthPayload is the response to authenticate and registration calls.
type AuthPayload struct {
	Token   string `json:"token"`
	Refresh string `json:"refresh"`
	User    User   `json:"user"`
}

// RegisterData is the registration request body.
type RegisterData struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}
