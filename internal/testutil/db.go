package testutil

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoImage is the image started when MONGO_TEST_URI is not set.
const MongoImage = "mongo:7"

var (
	containerOnce sync.Once
	containerURI  string
	containerErr  error
)

// TestContext returns a context bounded for a single test.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// SetupTestDB returns a fresh database for t and drops it when t ends.
//
// MONGO_TEST_URI selects an existing server. Without it a MongoDB container
// is started once per test binary. The test is skipped under -short or when
// neither is available.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB test in -short mode")
	}

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
		containerOnce.Do(startContainer)
		if containerErr != nil {
			t.Skipf("MongoDB container unavailable: %v", containerErr)
		}
		uri = containerURI
	}

	ctx, cancel := TestContext()
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("MongoDB unavailable: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		t.Skipf("MongoDB unavailable: %v", err)
	}

	db := client.Database(dbName(t))
	t.Cleanup(func() {
		ctx, cancel := TestContext()
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

// startContainer runs for the lifetime of the test binary; Ryuk removes the
// container afterwards.
func startContainer() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	c, err := mongodb.Run(ctx, MongoImage)
	if err != nil {
		containerErr = err
		return
	}
	containerURI, containerErr = c.ConnectionString(ctx)
}

var unsafeDBChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// dbName derives a unique database name (max 63 bytes) from the test name.
func dbName(t *testing.T) string {
	base := strings.ToLower(unsafeDBChars.ReplaceAllString(t.Name(), "_"))
	suffix := primitive.NewObjectID().Hex()[16:]
	if len(base) > 40 {
		base = base[:40]
	}
	return fmt.Sprintf("t_%s_%s", base, suffix)
}
