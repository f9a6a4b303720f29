package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"imshaby_bot/internal/config"
)

func TestNewManagerConnectsAndExposesCollections(t *testing.T) {
	fake := newFakeMongoClient(t)
	restore := stubConnect(fake, nil)
	t.Cleanup(restore)

	cfg := config.Config{
		MongoURI: "mongodb://stub-host:27017",
		MongoDB:  "imshaby_bot_test",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	manager, err := NewManager(ctx, cfg)
	if err != nil {
		t.Fatalf("expected manager to initialize, got error: %v", err)
	}

	if manager.Database().Name() != cfg.MongoDB {
		t.Fatalf("expected database %s, got %s", cfg.MongoDB, manager.Database().Name())
	}

	if len(fake.databaseRequests) != 1 || fake.databaseRequests[0] != cfg.MongoDB {
		t.Fatalf("expected database request for %s, got %v", cfg.MongoDB, fake.databaseRequests)
	}

	if manager.Users().Name() != CollectionUsers {
		t.Fatalf("expected users collection name %s, got %s", CollectionUsers, manager.Users().Name())
	}

	if err := manager.Close(ctx); err != nil {
		t.Fatalf("expected clean disconnect, got %v", err)
	}

	if !fake.disconnectCalled {
		t.Fatalf("expected disconnect to be called")
	}
}

func TestNewManagerFailsOnPingAndCleansUp(t *testing.T) {
	fake := newFakeMongoClient(t)
	fake.pingErr = errors.New("ping failed")

	restore := stubConnect(fake, nil)
	t.Cleanup(restore)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewManager(ctx, config.Config{MongoURI: "mongodb://stub", MongoDB: "imshaby_bot_test"})
	if err == nil {
		t.Fatalf("expected ping error")
	}

	if !fake.disconnectCalled {
		t.Fatalf("expected disconnect after ping failure")
	}
}

func TestNewManagerPropagatesConnectError(t *testing.T) {
	restore := stubConnect(nil, errors.New("connect failed"))
	t.Cleanup(restore)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewManager(ctx, config.Config{MongoURI: "mongodb://stub", MongoDB: "imshaby_bot_test"})
	if err == nil {
		t.Fatalf("expected connection error")
	}
}

func TestNewManagerValidatesContext(t *testing.T) {
	_, err := NewManager(nil, config.Config{MongoURI: "mongodb://stub", MongoDB: "imshaby_bot_test"}) //nolint:staticcheck
	if err == nil {
		t.Fatalf("expected error for nil context")
	}
}

func TestManagerPingChecksConnectivity(t *testing.T) {
	fake := newFakeMongoClient(t)
	restore := stubConnect(fake, nil)
	t.Cleanup(restore)

	manager, err := NewManager(context.Background(), config.Config{MongoURI: "mongodb://stub", MongoDB: "imshaby_bot_test"})
	if err != nil {
		t.Fatalf("expected manager to initialize, got error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := manager.Ping(ctx); err != nil {
		t.Fatalf("expected ping to succeed, got error: %v", err)
	}

	if fake.pingCalls < 2 {
		t.Fatalf("expected ping to be invoked at least twice (init + explicit), got %d", fake.pingCalls)
	}
}

func TestEnsureBaseIndexesCreatesUserIndexes(t *testing.T) {
	fake := newFakeMongoClient(t)
	restoreConnect := stubConnect(fake, nil)
	t.Cleanup(restoreConnect)

	manager, err := NewManager(context.Background(), config.Config{MongoURI: "mongodb://stub", MongoDB: "imshaby_bot_test"})
	if err != nil {
		t.Fatalf("expected manager to initialize, got error: %v", err)
	}

	recorder := newIndexRecorder(t, "")
	restoreIndexes := recorder.stub()
	t.Cleanup(restoreIndexes)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := manager.EnsureBaseIndexes(ctx); err != nil {
		t.Fatalf("expected indexes to be created, got error: %v", err)
	}

	if len(recorder.calls) != 1 {
		t.Fatalf("expected 1 index creation call, got %d", len(recorder.calls))
	}

	userCall := recorder.calls[0]
	if userCall.collection != CollectionUsers {
		t.Fatalf("expected collection %s, got %s", CollectionUsers, userCall.collection)
	}

	if len(userCall.models) != 2 {
		t.Fatalf("expected 2 index models, got %d", len(userCall.models))
	}

	assertIndexKey(t, userCall.models[0], "observable_parish_keys")
	assertIndexKey(t, userCall.models[1], "last_activity")
}

func TestEnsureBaseIndexesFailsFastOnErrors(t *testing.T) {
	fake := newFakeMongoClient(t)
	restoreConnect := stubConnect(fake, nil)
	t.Cleanup(restoreConnect)

	manager, err := NewManager(context.Background(), config.Config{MongoURI: "mongodb://stub", MongoDB: "imshaby_bot_test"})
	if err != nil {
		t.Fatalf("expected manager to initialize, got error: %v", err)
	}

	recorder := newIndexRecorder(t, CollectionUsers)
	restoreIndexes := recorder.stub()
	t.Cleanup(restoreIndexes)

	err = manager.EnsureBaseIndexes(context.Background())
	if err == nil {
		t.Fatalf("expected error from index creation")
	}
	if !errors.Is(err, errIndexFailure) {
		t.Fatalf("expected error to wrap index failure, got %v", err)
	}
}

type fakeMongoClient struct {
	client           *mongo.Client
	pingErr          error
	disconnectErr    error
	disconnectCalled bool
	databaseRequests []string
	pingCalls        int
}

func newFakeMongoClient(t *testing.T) *fakeMongoClient {
	t.Helper()

	client, err := mongo.NewClient(options.Client().ApplyURI("mongodb://example.com:27017"))
	if err != nil {
		t.Fatalf("failed to build fake client: %v", err)
	}

	return &fakeMongoClient{client: client}
}

func (f *fakeMongoClient) Ping(_ context.Context, _ *readpref.ReadPref) error {
	f.pingCalls++
	return f.pingErr
}

func (f *fakeMongoClient) Database(name string, opts ...*options.DatabaseOptions) *mongo.Database {
	f.databaseRequests = append(f.databaseRequests, name)
	return f.client.Database(name, opts...)
}

func (f *fakeMongoClient) Disconnect(context.Context) error {
	f.disconnectCalled = true
	return f.disconnectErr
}

func stubConnect(fake mongoClient, err error) func() {
	prev := connectMongo
	connectMongo = func(context.Context, *options.ClientOptions) (mongoClient, error) {
		return fake, err
	}

	return func() {
		connectMongo = prev
	}
}

var errIndexFailure = errors.New("index failure")

type indexCall struct {
	collection string
	models     []mongo.IndexModel
}

type indexRecorder struct {
	t               *testing.T
	calls           []indexCall
	errorCollection string
}

func newIndexRecorder(t *testing.T, errorCollection string) *indexRecorder {
	t.Helper()
	return &indexRecorder{t: t, errorCollection: errorCollection}
}

func (r *indexRecorder) stub() func() {
	prev := createIndexes
	createIndexes = func(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) ([]string, error) {
		r.calls = append(r.calls, indexCall{collection: coll.Name(), models: models})
		if r.errorCollection == coll.Name() {
			return nil, errIndexFailure
		}
		return []string{coll.Name() + "_idx"}, nil
	}

	return func() {
		createIndexes = prev
	}
}

func assertIndexKey(t *testing.T, model mongo.IndexModel, key string) {
	t.Helper()

	keysDoc, ok := model.Keys.(bson.D)
	if !ok {
		t.Fatalf("expected bson.D keys, got %T", model.Keys)
	}

	if len(keysDoc) != 1 || keysDoc[0].Key != key {
		t.Fatalf("expected index key %s, got %v", key, keysDoc)
	}
}
