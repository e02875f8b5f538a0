package infrastructure

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table definitions for the farm schema. Column names are the ones the
// postgres repository queries.
var (
	UsersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "name", Type: field.TypeString, Nullable: true},
		{Name: "email", Type: field.TypeString, Nullable: true},
		{Name: "username", Type: field.TypeString, Unique: true, Nullable: true},
		{Name: "image", Type: field.TypeString, Nullable: true},
		{Name: "role", Type: field.TypeString, Default: "FARMER"},
		{Name: "password_hash", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	UsersTable = &schema.Table{
		Name:       "users",
		Columns:    UsersColumns,
		PrimaryKey: []*schema.Column{UsersColumns[0]},
	}

	AccountsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "provider", Type: field.TypeString},
		{Name: "provider_account_id", Type: field.TypeString},
		{Name: "type", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "user_id", Type: field.TypeString},
	}
	AccountsTable = &schema.Table{
		Name:       "accounts",
		Columns:    AccountsColumns,
		PrimaryKey: []*schema.Column{AccountsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "accounts_users_accounts",
				Columns:    []*schema.Column{AccountsColumns[5]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "account_provider_provider_account_id",
				Unique:  true,
				Columns: []*schema.Column{AccountsColumns[1], AccountsColumns[2]},
			},
			{
				Name:    "account_user_id",
				Unique:  false,
				Columns: []*schema.Column{AccountsColumns[5]},
			},
		},
	}

	PlotsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "name", Type: field.TypeString},
		{Name: "size_rai", Type: field.TypeFloat64, Nullable: true},
		{Name: "size_ngan", Type: field.TypeFloat64, Nullable: true},
		{Name: "size_wa", Type: field.TypeFloat64, Nullable: true},
		{Name: "latitude", Type: field.TypeFloat64},
		{Name: "longitude", Type: field.TypeFloat64},
		{Name: "address", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "user_id", Type: field.TypeString},
	}
	PlotsTable = &schema.Table{
		Name:       "plots",
		Columns:    PlotsColumns,
		PrimaryKey: []*schema.Column{PlotsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "plots_users_plots",
				Columns:    []*schema.Column{PlotsColumns[10]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "plot_user_id_created_at",
				Unique:  false,
				Columns: []*schema.Column{PlotsColumns[10], PlotsColumns[8]},
			},
		},
	}

	CropTypesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "name", Type: field.TypeString, Unique: true},
		{Name: "name_en", Type: field.TypeString, Nullable: true},
		{Name: "name_th", Type: field.TypeString, Nullable: true},
		{Name: "description", Type: field.TypeString, Nullable: true},
		{Name: "icon", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	CropTypesTable = &schema.Table{
		Name:       "crop_types",
		Columns:    CropTypesColumns,
		PrimaryKey: []*schema.Column{CropTypesColumns[0]},
	}

	CropVarietiesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "name", Type: field.TypeString},
		{Name: "name_en", Type: field.TypeString, Nullable: true},
		{Name: "name_th", Type: field.TypeString, Nullable: true},
		{Name: "description", Type: field.TypeString, Nullable: true},
		{Name: "growth_period_days", Type: field.TypeInt, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "crop_type_id", Type: field.TypeString},
	}
	CropVarietiesTable = &schema.Table{
		Name:       "crop_varieties",
		Columns:    CropVarietiesColumns,
		PrimaryKey: []*schema.Column{CropVarietiesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "crop_varieties_crop_types_varieties",
				Columns:    []*schema.Column{CropVarietiesColumns[8]},
				RefColumns: []*schema.Column{CropTypesColumns[0]},
				OnDelete:   schema.Restrict,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "cropvariety_crop_type_id_name",
				Unique:  true,
				Columns: []*schema.Column{CropVarietiesColumns[8], CropVarietiesColumns[1]},
			},
		},
	}

	StandardPlansColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "name", Type: field.TypeString},
		{Name: "description", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	StandardPlansTable = &schema.Table{
		Name:       "standard_plans",
		Columns:    StandardPlansColumns,
		PrimaryKey: []*schema.Column{StandardPlansColumns[0]},
	}

	PlanVarietiesColumns = []*schema.Column{
		{Name: "standard_plan_id", Type: field.TypeString},
		{Name: "crop_variety_id", Type: field.TypeString},
		{Name: "linked_at", Type: field.TypeTime},
	}
	PlanVarietiesTable = &schema.Table{
		Name:       "plan_varieties",
		Columns:    PlanVarietiesColumns,
		PrimaryKey: []*schema.Column{PlanVarietiesColumns[0], PlanVarietiesColumns[1]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "plan_varieties_standard_plan_id",
				Columns:    []*schema.Column{PlanVarietiesColumns[0]},
				RefColumns: []*schema.Column{StandardPlansColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "plan_varieties_crop_variety_id",
				Columns:    []*schema.Column{PlanVarietiesColumns[1]},
				RefColumns: []*schema.Column{CropVarietiesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "planvariety_crop_variety_id_linked_at",
				Unique:  false,
				Columns: []*schema.Column{PlanVarietiesColumns[1], PlanVarietiesColumns[2]},
			},
		},
	}

	PlanTasksColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "title", Type: field.TypeString},
		{Name: "description", Type: field.TypeString, Nullable: true},
		{Name: "day_from_start", Type: field.TypeInt},
		{Name: "activity_type", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "standard_plan_id", Type: field.TypeString},
	}
	PlanTasksTable = &schema.Table{
		Name:       "plan_tasks",
		Columns:    PlanTasksColumns,
		PrimaryKey: []*schema.Column{PlanTasksColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "plan_tasks_standard_plans_tasks",
				Columns:    []*schema.Column{PlanTasksColumns[6]},
				RefColumns: []*schema.Column{StandardPlansColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "plantask_standard_plan_id_day_from_start",
				Unique:  false,
				Columns: []*schema.Column{PlanTasksColumns[6], PlanTasksColumns[3]},
			},
		},
	}

	PlantingCyclesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "start_date", Type: field.TypeTime},
		{Name: "end_date", Type: field.TypeTime, Nullable: true},
		{Name: "status", Type: field.TypeString, Default: "ACTIVE"},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "plot_id", Type: field.TypeString},
		{Name: "crop_variety_id", Type: field.TypeString},
		{Name: "standard_plan_id", Type: field.TypeString, Nullable: true},
	}
	PlantingCyclesTable = &schema.Table{
		Name:       "planting_cycles",
		Columns:    PlantingCyclesColumns,
		PrimaryKey: []*schema.Column{PlantingCyclesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "planting_cycles_plots_cycles",
				Columns:    []*schema.Column{PlantingCyclesColumns[6]},
				RefColumns: []*schema.Column{PlotsColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "planting_cycles_crop_varieties_cycles",
				Columns:    []*schema.Column{PlantingCyclesColumns[7]},
				RefColumns: []*schema.Column{CropVarietiesColumns[0]},
				OnDelete:   schema.Restrict,
			},
			{
				Symbol:     "planting_cycles_standard_plans_cycles",
				Columns:    []*schema.Column{PlantingCyclesColumns[8]},
				RefColumns: []*schema.Column{StandardPlansColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:       ActiveCycleIndex,
				Unique:     true,
				Columns:    []*schema.Column{PlantingCyclesColumns[6]},
				Annotation: &entsql.IndexAnnotation{Where: "status = 'ACTIVE'"},
			},
			{
				Name:    "plantingcycle_plot_id_start_date",
				Unique:  false,
				Columns: []*schema.Column{PlantingCyclesColumns[6], PlantingCyclesColumns[1]},
			},
		},
	}

	ActivitiesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "type", Type: field.TypeString},
		{Name: "description", Type: field.TypeString, Default: ""},
		{Name: "activity_date", Type: field.TypeTime},
		{Name: "cost", Type: field.TypeFloat64, Default: 0},
		{Name: "income", Type: field.TypeFloat64, Default: 0},
		{Name: "images", Type: field.TypeJSON},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "cycle_id", Type: field.TypeString},
	}
	ActivitiesTable = &schema.Table{
		Name:       "activities",
		Columns:    ActivitiesColumns,
		PrimaryKey: []*schema.Column{ActivitiesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "activities_planting_cycles_activities",
				Columns:    []*schema.Column{ActivitiesColumns[9]},
				RefColumns: []*schema.Column{PlantingCyclesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "activity_cycle_id_activity_date",
				Unique:  false,
				Columns: []*schema.Column{ActivitiesColumns[9], ActivitiesColumns[3]},
			},
		},
	}

	// Tables holds all the tables in the schema, parents first.
	Tables = []*schema.Table{
		UsersTable,
		AccountsTable,
		PlotsTable,
		CropTypesTable,
		CropVarietiesTable,
		StandardPlansTable,
		PlanVarietiesTable,
		PlanTasksTable,
		PlantingCyclesTable,
		ActivitiesTable,
	}
)

// ActiveCycleIndex is the partial unique index that allows one ACTIVE
// cycle per plot.
const ActiveCycleIndex = "plantingcycle_plot_id_active"

func init() {
	AccountsTable.ForeignKeys[0].RefTable = UsersTable
	PlotsTable.ForeignKeys[0].RefTable = UsersTable
	CropVarietiesTable.ForeignKeys[0].RefTable = CropTypesTable
	PlanVarietiesTable.ForeignKeys[0].RefTable = StandardPlansTable
	PlanVarietiesTable.ForeignKeys[1].RefTable = CropVarietiesTable
	PlanTasksTable.ForeignKeys[0].RefTable = StandardPlansTable
	PlantingCyclesTable.ForeignKeys[0].RefTable = PlotsTable
	PlantingCyclesTable.ForeignKeys[1].RefTable = CropVarietiesTable
	PlantingCyclesTable.ForeignKeys[2].RefTable = StandardPlansTable
	ActivitiesTable.ForeignKeys[0].RefTable = PlantingCyclesTable
}

// MigrateSchema creates or updates the farm tables through the ent migrator.
func MigrateSchema(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv,
		schema.WithDropIndex(true),
		schema.WithDropColumn(true),
		schema.WithForeignKeys(true),
	)
	if err != nil {
		return fmt.Errorf("create schema migrator: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}
