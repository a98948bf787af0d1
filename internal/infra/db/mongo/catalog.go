package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"carrental/internal/domain/rental"
)

// Catalog answers cross-company reads outside any unit of work.
type Catalog struct {
	DB *mongo.Database
}

func (c Catalog) CompanyNames(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"_id": 1})
	cur, err := c.DB.Collection(companiesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.ID)
	}
	return names, nil
}

func (c Catalog) ReservationsByRenter(ctx context.Context, renter string) ([]rental.Reservation, error) {
	cur, err := c.DB.Collection(carsCollection).Find(ctx, bson.M{"reservations.renter": renter})
	if err != nil {
		return nil, err
	}
	var docs []carDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]rental.Reservation, 0)
	for _, d := range docs {
		for _, r := range d.Reservations {
			if r.Renter == renter {
				out = append(out, r.toDomain(d.Company, rental.CarID(d.CarID)))
			}
		}
	}
	rental.SortReservations(out)
	return out, nil
}

// RegisterCompany replaces a company and its fleet in one transaction.
func (c Catalog) RegisterCompany(ctx context.Context, company *rental.Company, cars []*rental.Car) error {
	if company == nil {
		return rental.ErrInvalidCompany
	}
	for _, car := range cars {
		if car.Company != company.Name {
			return fmt.Errorf("%w: car %d belongs to %q", rental.ErrInvalidCompany, car.ID, car.Company)
		}
		if _, ok := company.CarType(car.Type); !ok {
			return fmt.Errorf("%w: %s/%s", rental.ErrCarTypeNotFound, company.Name, car.Type)
		}
	}
	session, err := c.DB.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		companies := c.DB.Collection(companiesCollection)
		var existing companyDocument
		version := int64(0)
		if err := companies.FindOne(sc, bson.M{"_id": company.Name}).Decode(&existing); err == nil {
			version = existing.Version + 1
		}
		doc := newCompanyDocument(company, version)
		if _, err := companies.ReplaceOne(sc, bson.M{"_id": company.Name}, doc, options.Replace().SetUpsert(true)); err != nil {
			return nil, err
		}
		fleet := c.DB.Collection(carsCollection)
		if _, err := fleet.DeleteMany(sc, bson.M{"company": company.Name}); err != nil {
			return nil, err
		}
		if len(cars) == 0 {
			return nil, nil
		}
		docs := make([]any, 0, len(cars))
		for _, car := range cars {
			docs = append(docs, newCarDocument(car))
		}
		_, err := fleet.InsertMany(sc, docs)
		return nil, err
	})
	return mapError(err)
}

var (
	_ rental.Catalog   = Catalog{}
	_ rental.Registrar = Catalog{}
)
