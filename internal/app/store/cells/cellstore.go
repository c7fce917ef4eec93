// internal/app/store/cells/cellstore.go
package cellstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/intorehq/intorehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateCode = errors.New("a cell with this code already exists in the sector")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("cells")}
}

// Create inserts a cell. The caller is expected to have filled DistrictID
// from the sector chain before calling.
func (s *Store) Create(ctx context.Context, cell models.Cell) (models.Cell, error) {
	now := time.Now().UTC()
	cell.ID = primitive.NewObjectID()
	cell.NameCI = text.Fold(cell.Name)
	if cell.Status == "" {
		cell.Status = models.StatusActive
	}
	cell.CreatedAt = now
	cell.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, cell)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Cell{}, ErrDuplicateCode
		}
		return models.Cell{}, err
	}
	return cell, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Cell, error) {
	var cell models.Cell
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&cell)
	if err != nil {
		return models.Cell{}, err
	}
	return cell, nil
}

// BySector returns all cells of a sector, ordered by folded name.
func (s *Store) BySector(ctx context.Context, sectorID primitive.ObjectID) ([]models.Cell, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}})
	return s.Find(ctx, bson.M{"sector_id": sectorID}, opts)
}

// ByDistrict returns all cells under a district, across its sectors.
func (s *Store) ByDistrict(ctx context.Context, districtID primitive.ObjectID) ([]models.Cell, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}})
	return s.Find(ctx, bson.M{"district_id": districtID}, opts)
}

// Update modifies a cell's mutable fields and refreshes UpdatedAt.
// Parent references are immutable after creation.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, cell models.Cell) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if cell.Name != "" {
		set["name"] = cell.Name
		set["name_ci"] = text.Fold(cell.Name)
	}
	if cell.Status != "" {
		set["status"] = cell.Status
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateCode
		}
		return err
	}
	return nil
}

// SetStatus flips a cell between active and disabled.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// CodeExistsInSector checks if a cell with the given code exists in the sector.
func (s *Store) CodeExistsInSector(ctx context.Context, code string, sectorID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"code": code, "sector_id": sectorID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Find returns cells matching the given filter with optional find options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Cell, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var cells []models.Cell
	if err := cur.All(ctx, &cells); err != nil {
		return nil, err
	}
	return cells, nil
}

// Count returns the number of cells matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
