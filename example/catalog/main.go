// Catalog runs the library server using an in-memory store filled with a few authors,
// books and a user (mluukkai, password "secret") so it can be tried without MongoDB.
package main

import (
	"context"
	"log"
	"os"

	"github.com/andrewwphillips/libraryql"
	"github.com/andrewwphillips/libraryql/internal/auth"
	"github.com/andrewwphillips/libraryql/internal/config"
	"github.com/andrewwphillips/libraryql/internal/store/memstore"
)

func main() {
	cfg := config.Default()
	cfg.Store = config.StoreMemory
	cfg.Addr = "localhost:4000"
	cfg.Log.Format = "console"
	cfg.Auth.Secret = os.Getenv("JWT_SECRET")
	if cfg.Auth.Secret == "" {
		cfg.Auth.Secret = "catalog example secret"
	}

	st := memstore.New()
	if err := seed(context.Background(), st, auth.Hasher{}); err != nil {
		log.Fatalln("seeding catalog:", err)
	}
	if err := libraryql.Run(context.Background(), cfg, libraryql.WithStore(st)); err != nil {
		log.Fatalln(err)
	}
}
