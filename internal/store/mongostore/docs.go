package mongostore

// docs.go has the shape of the documents stored in each collection

import (
	"github.com/andrewwphillips/libraryql/internal/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	authorDoc struct {
		ID   primitive.ObjectID `bson:"_id,omitempty"`
		Name string             `bson:"name"`
		Born *int               `bson:"born,omitempty"`
	}

	bookDoc struct {
		ID        primitive.ObjectID `bson:"_id,omitempty"`
		Title     string             `bson:"title"`
		Author    primitive.ObjectID `bson:"author"`
		Published *int               `bson:"published,omitempty"`
		Genres    []string           `bson:"genres"`

		// AuthorDoc is only filled in by the lookup stage of a read
		AuthorDoc *authorDoc `bson:"authorDoc,omitempty"`
	}

	userDoc struct {
		ID            primitive.ObjectID `bson:"_id,omitempty"`
		Username      string             `bson:"username"`
		FavoriteGenre string             `bson:"favoriteGenre"`
		PasswordHash  string             `bson:"passwordHash"`
	}
)

func (d authorDoc) model() model.Author {
	return model.Author{ID: d.ID.Hex(), Name: d.Name, Born: d.Born}
}

func (d bookDoc) model() model.Book {
	r := model.Book{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		AuthorID:  d.Author.Hex(),
		Published: d.Published,
		Genres:    d.Genres,
	}
	if r.Genres == nil {
		r.Genres = []string{}
	}
	if d.AuthorDoc != nil {
		a := d.AuthorDoc.model()
		r.Author = &a
	}
	return r
}

func (d userDoc) model() model.User {
	return model.User{
		ID:            d.ID.Hex(),
		Username:      d.Username,
		FavoriteGenre: d.FavoriteGenre,
		PasswordHash:  d.PasswordHash,
	}
}
