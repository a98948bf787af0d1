package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.mongodb.org/mongo-driver/x/mongo/driver"

	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
	"carrental/internal/infra/db/snapshot"
)

// Factory opens one session transaction per company unit of work. A commit
// bumps the company document version, so two writers of the same company
// cannot both commit.
type Factory struct {
	DB *mongo.Database
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	if opts.Company == "" {
		return nil, uow.ErrCompanyRequired
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	u := &Unit{db: f.DB, session: session}
	u.Unit = snapshot.New(opts.Company, opts.ReadOnly, u.load)
	return u, nil
}

type Unit struct {
	*snapshot.Unit
	db      *mongo.Database
	session mongo.Session
}

func (u *Unit) load(ctx context.Context) (*snapshot.Aggregate, error) {
	var company companyDocument
	err := u.db.Collection(companiesCollection).FindOne(ctx, bson.M{"_id": u.Company()}).Decode(&company)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", rental.ErrCompanyNotFound, u.Company())
	}
	if err != nil {
		return nil, mapError(err)
	}
	cur, err := u.db.Collection(carsCollection).Find(ctx, bson.M{"company": u.Company()})
	if err != nil {
		return nil, mapError(err)
	}
	var docs []carDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapError(err)
	}
	agg := &snapshot.Aggregate{Company: company.toDomain(), Version: company.Version}
	for _, d := range docs {
		agg.Cars = append(agg.Cars, d.toDomain())
	}
	return agg, nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if !u.Finish() {
		return uow.ErrUnitClosed
	}
	defer u.session.EndSession(ctx)
	changes := u.Changes()
	if u.ReadOnly() || changes.Empty() {
		return u.session.AbortTransaction(ctx)
	}
	sc := mongo.NewSessionContext(ctx, u.session)
	if err := u.write(sc, changes); err != nil {
		_ = u.session.AbortTransaction(ctx)
		return err
	}
	if err := u.session.CommitTransaction(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (u *Unit) write(ctx context.Context, changes snapshot.Changes) error {
	res, err := u.db.Collection(companiesCollection).UpdateOne(ctx,
		bson.M{"_id": u.Company(), "version": changes.Version},
		bson.M{"$inc": bson.M{"version": 1}})
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: company %s", rental.ErrTransactionConflict, u.Company())
	}
	cars := u.db.Collection(carsCollection)
	for _, car := range changes.Cars {
		doc := newCarDocument(car)
		res, err := cars.UpdateOne(ctx,
			bson.M{"_id": doc.ID, "version": car.Version},
			bson.M{"$set": bson.M{"reservations": doc.Reservations}, "$inc": bson.M{"version": 1}})
		if err != nil {
			return mapError(err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: car %s", rental.ErrTransactionConflict, doc.ID)
		}
	}
	if len(changes.Events) > 0 {
		now := time.Now().UTC()
		docs := make([]any, 0, len(changes.Events))
		for _, rec := range changes.Events {
			docs = append(docs, newOutboxDocument(rec, now))
		}
		if _, err := u.db.Collection(outboxCollection).InsertMany(ctx, docs); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if !u.Finish() {
		return nil
	}
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

const writeConflictCode = 112

// mapError turns transaction aborts caused by concurrent writers into
// rental.ErrTransactionConflict so the runner retries them.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && (labeled.HasErrorLabel(driver.TransientTransactionError) || labeled.HasErrorLabel(driver.UnknownTransactionCommitResult)) {
		return fmt.Errorf("%w: %v", rental.ErrTransactionConflict, err)
	}
	var server mongo.ServerError
	if errors.As(err, &server) && server.HasErrorCode(writeConflictCode) {
		return fmt.Errorf("%w: %v", rental.ErrTransactionConflict, err)
	}
	return err
}

var _ uow.UoWFactory = Factory{}
