package orm_test

type Customer struct {
	Id    int    `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

type Order struct {
	Id         int    `db:"id"`
	CustomerID int    `db:"customerId"`
	Items      []Item `rel:"has_many,foreign_key:orderId,reference:order"`
}

type Item struct {
	Id      int    `db:"id"`
	OrderID int    `db:"orderId"`
	Sku     string `db:"sku"`
}

type User struct {
	ID      int
	Name    string
	Profile *Profile `rel:"has_one,foreign_key:UserID"`
}

type Profile struct {
	ID     int
	UserID int
	Bio    string
}

type Account struct {
	ID       int
	Settings Settings `rel:"has_one,foreign_key:AccountID,optional"`
}

type Settings struct {
	ID        int
	AccountID int
	Theme     string
}

type Author struct {
	ID    int
	Name  string
	Books []*Book `rel:"has_many,foreign_key:AuthorID,lazy"`
}

type Book struct {
	ID       int
	AuthorID int
	Title    string
}

// Left and Right map onto each other.
type Left struct {
	ID      int
	RightID int
	Rights  []Right `rel:"has_many,foreign_key:LeftID"`
}

type Right struct {
	ID     int
	LeftID int
	Lefts  []Left `rel:"has_many,foreign_key:RightID"`
}

type Node struct {
	ID       int
	ParentID int
	Children []Node `rel:"has_many,foreign_key:ParentID"`
}

// PersonSummary reads the Person table as a different record type.
type Person struct {
	ID      int
	Name    string
	Summary *PersonSummary `rel:"has_one,foreign_key:ID"`
}

type PersonSummary struct {
	ID    int
	Name  string
	Notes []PersonNote `rel:"has_many,foreign_key:PersonID"`
}

func (PersonSummary) TableName() string { return "Person" }

type PersonNote struct {
	ID       int
	PersonID int
	Body     string
}
