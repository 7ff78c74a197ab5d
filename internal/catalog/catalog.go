// Package catalog declares the entity types of the marketplace.
package catalog

import (
	"fmt"

	"autohaus.io/cms/internal/governance/permission"
	"autohaus.io/cms/internal/model"
	"autohaus.io/cms/internal/store"
)

// Entity type names referenced outside the catalog.
const (
	TypeSeller       = "seller"
	TypeVehicle      = "vehicle"
	TypeVehiclePhoto = "vehicle_photo"
	TypeSubscription = "subscription"
)

var sellerOwner = permission.AttrOwner("user")

// NewRegistry returns a validated registry holding every catalog type.
func NewRegistry() (*model.Registry, error) {
	reg := model.NewRegistry()
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Register adds the catalog types to reg and validates cross references.
func Register(reg *model.Registry) error {
	for _, t := range types() {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return reg.Validate()
}

func types() []model.EntityType {
	return []model.EntityType{
		{
			Name: "city",
			Attributes: []model.Attribute{
				{Name: "name", Kind: model.KindText, Required: true, ListView: true},
			},
		},
		{
			Name: "currency",
			Attributes: []model.Attribute{
				{Name: "name", Kind: model.KindText, Required: true, ListView: true},
				{Name: "symbol", Kind: model.KindText, Required: true, ListView: true},
			},
		},
		{
			Name: "make",
			Attributes: []model.Attribute{
				{Name: "name", Kind: model.KindText, Required: true, ListView: true},
				{Name: "logo", Kind: model.KindImage},
			},
		},
		{
			Name: "model",
			Attributes: []model.Attribute{
				{Name: "make", Kind: model.KindRelation, Target: "make", Required: true, ListView: true},
				{Name: "name", Kind: model.KindText, Required: true, ListView: true, ColumnBreak: true},
				{Name: "transmission", Kind: model.KindText, Choices: transmissions, Default: "automatic"},
				{Name: "fuel_type", Kind: model.KindText, Choices: fuels, Default: "petrol"},
				{Name: "drivetrain", Kind: model.KindText, Choices: drivetrains, Default: "front_wheel_drive"},
				{Name: "engine", Kind: model.KindText},
				{Name: "year", Kind: model.KindInteger, Default: int64(2000), ListView: true},
			},
		},
		{
			Name: "feature",
			Attributes: []model.Attribute{
				{Name: "name", Kind: model.KindText, Required: true, ListView: true},
			},
		},
		{
			Name:  TypeSeller,
			Owner: sellerOwner,
			Attributes: []model.Attribute{
				{Name: "name", Kind: model.KindText, Required: true, ListView: true},
				{Name: "phone_number", Label: "Phone", Kind: model.KindText, ListView: true},
				{Name: "email", Kind: model.KindText},
				{Name: "whatsapp", Label: "WhatsApp", Kind: model.KindBoolean, ColumnBreak: true},
				{Name: "photo", Kind: model.KindImage, SectionBreak: true},
				{Name: "address", Kind: model.KindLongText},
				{Name: "city", Kind: model.KindRelation, Target: "city", ListView: true},
				{Name: "country", Kind: model.KindText},
				{Name: "user", Label: "Account", Kind: model.KindText, Hidden: true},
			},
		},
		vehicle(),
		{
			Name: TypeVehiclePhoto,
			Attributes: []model.Attribute{
				{Name: "vehicle", Kind: model.KindRelation, Target: TypeVehicle},
				{Name: "photo", Kind: model.KindImage},
				{Name: "is_main", Label: "Main Photo", Kind: model.KindBoolean},
			},
		},
		{
			Name:  "faq_category",
			Label: "FAQ Category",
			Attributes: []model.Attribute{
				{Name: "name", Kind: model.KindText, Required: true, ListView: true},
				{Name: "description", Kind: model.KindLongText},
			},
			Tables: []model.Table{{
				Label:      "Questions",
				Child:      "faq",
				ParentAttr: "category",
				Fields:     []string{"question", "answer"},
				Mode:       model.ReconcilePositional,
			}},
		},
		{
			Name:  "faq",
			Label: "FAQ",
			Attributes: []model.Attribute{
				{Name: "category", Kind: model.KindRelation, Target: "faq_category", ListView: true},
				{Name: "question", Kind: model.KindText, Required: true, ListView: true},
				{Name: "answer", Kind: model.KindLongText, Required: true},
			},
			Display: func(rec store.Record) string { return rec.String("question") },
		},
		{
			Name: "contact_entry",
			Attributes: []model.Attribute{
				{Name: "name", Kind: model.KindText, Required: true, ListView: true},
				{Name: "email", Kind: model.KindText, Required: true, ListView: true},
				{Name: "phone", Kind: model.KindText},
				{Name: "message", Kind: model.KindLongText, Required: true},
			},
		},
		{
			Name: TypeSubscription,
			Attributes: []model.Attribute{
				{Name: "user", Label: "Account", Kind: model.KindText, Required: true, ListView: true},
				{Name: "status", Kind: model.KindText, Choices: statuses, Default: permission.StatusPendingPayment, ListView: true},
				{Name: "start_date", Kind: model.KindDate, ListView: true},
				{Name: "end_date", Kind: model.KindDate, ListView: true},
			},
			Rules: []model.Rule{{
				Field:   "end_date",
				Expr:    `!has(self.start_date) || !has(self.end_date) || self.start_date == null || self.end_date == null || self.start_date <= self.end_date`,
				Message: "end date must not be before start date",
			}},
			Display: func(rec store.Record) string {
				return fmt.Sprintf("%s (%s)", rec.String("user"), rec.String("status"))
			},
		},
	}
}

func vehicle() model.EntityType {
	return model.EntityType{
		Name:      TypeVehicle,
		Draftable: true,
		Owner:     permission.ChainOwner("seller", TypeSeller, sellerOwner),
		Hooks:     vehicleHooks{},
		Attributes: []model.Attribute{
			{Name: "title", Kind: model.KindText, ListView: true},
			{Name: "make", Kind: model.KindRelation, Target: "make", ListView: true},
			{Name: "model", Kind: model.KindRelation, Target: "model", ListView: true},
			{Name: "seller", Kind: model.KindRelation, Target: TypeSeller},
			{Name: "price", Kind: model.KindDecimal, Scale: 2, Required: true, ListView: true},
			{Name: "currency", Kind: model.KindRelation, Target: "currency"},
			{Name: "negotiable", Kind: model.KindBoolean},
			{Name: "mileage", Kind: model.KindInteger},
			{Name: "year", Kind: model.KindInteger, ListView: true},
			{Name: "condition", Kind: model.KindText, Choices: conditions, Default: "Good"},
			{Name: "fuel_type", Kind: model.KindText, Choices: fuels},
			{Name: "transmission", Kind: model.KindText, Choices: transmissions},
			{Name: "body_type", Kind: model.KindText, Choices: bodyTypes},
			{Name: "engine", Kind: model.KindText},
			{Name: "features", Kind: model.KindManyToMany, Target: "feature"},
			{Name: "published", Kind: model.KindBoolean, ListView: true},
			{Name: "published_date", Kind: model.KindDate},
			{Name: "description", Kind: model.KindLongText},
		},
		Tables: []model.Table{{
			Label:      "Photos",
			Child:      TypeVehiclePhoto,
			ParentAttr: "vehicle",
			Fields:     []string{"photo", "is_main"},
			UploadAttr: "photo",
		}},
		Rules: []model.Rule{
			{Field: "mileage", Expr: `!has(self.mileage) || self.mileage == null || self.mileage >= 0`, Message: "mileage cannot be negative"},
			{Field: "year", Expr: `!has(self.year) || self.year == null || self.year == 0 || (self.year >= 1900 && self.year <= 2100)`, Message: "year is out of range"},
		},
		Layout: []model.LayoutStep{
			model.TableOf(TypeVehiclePhoto),
			model.Section(),
			model.Field("title"),
			model.Field("make"),
			model.Field("model"),
			model.Field("year"),
			model.Column(),
			model.Field("price"),
			model.Field("currency"),
			model.Field("negotiable"),
			model.Field("seller"),
			model.Section(),
			model.Field("mileage"),
			model.Field("condition"),
			model.Field("body_type"),
			model.Column(),
			model.Field("fuel_type"),
			model.Field("transmission"),
			model.Field("engine"),
			model.Section(),
			model.Field("features"),
			model.Field("description"),
			model.Column(),
			model.Field("published"),
			model.Field("published_date"),
		},
	}
}

var (
	transmissions = []model.Choice{
		{Value: "automatic", Label: "Automatic"},
		{Value: "manual", Label: "Manual"},
	}
	fuels = []model.Choice{
		{Value: "petrol", Label: "Petrol"},
		{Value: "diesel", Label: "Diesel"},
		{Value: "electric", Label: "Electric"},
		{Value: "hybrid", Label: "Hybrid"},
	}
	drivetrains = []model.Choice{
		{Value: "front_wheel_drive", Label: "Front Wheel Drive"},
		{Value: "rear_wheel_drive", Label: "Rear Wheel Drive"},
		{Value: "all_wheel_drive", Label: "All Wheel Drive"},
	}
	bodyTypes = []model.Choice{
		{Value: "sedan", Label: "Sedan"},
		{Value: "suv", Label: "SUV"},
		{Value: "hatchback", Label: "Hatchback"},
		{Value: "commercial", Label: "Commercial"},
		{Value: "convertible", Label: "Convertible"},
		{Value: "wagon", Label: "Station Wagon"},
		{Value: "pickup", Label: "Pickup"},
		{Value: "crossover", Label: "Crossover"},
		{Value: "sports_car", Label: "Sports Car"},
		{Value: "other", Label: "Other"},
	}
	conditions = []model.Choice{
		{Value: "Non-Runner"},
		{Value: "Excellent"},
		{Value: "Good"},
		{Value: "Fair"},
		{Value: "New"},
		{Value: "Needs Work"},
	}
	statuses = []model.Choice{
		{Value: permission.StatusActive, Label: "Active"},
		{Value: permission.StatusExpired, Label: "Expired"},
		{Value: permission.StatusPendingPayment, Label: "Pending Payment"},
	}
)
