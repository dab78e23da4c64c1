package main

import (
	"context"
	"errors"

	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/internal/repository"
	applog "go-warehouse-ws/pkg/logger"

	"gorm.io/gorm"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin123"
)

// seed creates default privileges, roles, the DEFAULT warehouse and the admin
// user when they don't exist yet.
func seed(ctx context.Context, db *gorm.DB) {
	log := applog.Get()
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	userRepo := repository.NewUserRepo(db)
	warehouseRepo := repository.NewWarehouseRepo(db)

	// 1. Privileges first
	if err := privilegeRepo.SeedDefaults(ctx); err != nil {
		log.WithError(err).Warn("failed to seed privileges")
	}

	// 2. Roles
	if err := roleRepo.SeedDefaults(ctx); err != nil {
		log.WithError(err).Warn("failed to seed roles")
	}

	// 3. Role privileges
	allPrivileges, err := privilegeRepo.FindAll(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load privileges")
		return
	}
	grants := map[string]func(code string) bool{
		model.RoleMasterAdmin: func(string) bool { return true },
		model.RoleAdmin:       func(code string) bool { return !model.AdminExcludedPrivileges[code] },
		model.RoleOperator:    func(code string) bool { return model.OperatorPrivileges[code] },
	}
	for roleCode, allowed := range grants {
		role, err := roleRepo.FindByCode(ctx, roleCode)
		if err != nil || len(role.Privileges) > 0 {
			continue
		}
		var granted []model.Privilege
		for _, p := range allPrivileges {
			if allowed(p.Code) {
				granted = append(granted, p)
			}
		}
		if err := roleRepo.ReplacePrivileges(ctx, role, granted); err != nil {
			log.WithError(err).WithField("role", roleCode).Warn("failed to assign role privileges")
			continue
		}
		log.WithField("role", roleCode).WithField("privileges", len(granted)).Info("role privileges assigned")
	}

	// 4. DEFAULT warehouse
	warehouse, err := warehouseRepo.FindByCode(ctx, model.DefaultWarehouseCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		warehouse = &model.Warehouse{
			WarehouseName:     "Main Warehouse",
			WarehouseCode:     model.DefaultWarehouseCode,
			WarehouseInitials: "MW",
			Timezone:          "Asia/Kolkata",
			Currency:          "INR",
			IsActive:          true,
		}
		warehouse.CreatedBy = "system"
		warehouse.UpdatedBy = "system"
		if err := warehouseRepo.Create(ctx, warehouse); err != nil {
			log.WithError(err).Warn("failed to create default warehouse")
			warehouse = nil
		} else {
			log.Info("default warehouse created")
		}
	} else if err != nil {
		log.WithError(err).Warn("failed to look up default warehouse")
		warehouse = nil
	}

	// 5. Admin user with MASTER_ADMIN role
	if _, err := userRepo.FindByEmail(ctx, adminEmail); err == nil {
		return
	}
	masterRole, err := roleRepo.FindByCode(ctx, model.RoleMasterAdmin)
	if err != nil {
		log.WithError(err).Warn("MASTER_ADMIN role missing, admin user not created")
		return
	}
	admin := &model.User{
		Email:      adminEmail,
		FullName:   "Master Administrator",
		RoleID:     &masterRole.ID,
		IsActive:   true,
		Privileges: masterRole.Privileges,
	}
	if warehouse != nil {
		admin.WarehouseID = &warehouse.ID
	}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"

	if err := admin.SetPassword(adminPassword); err != nil {
		log.WithError(err).Warn("failed to hash admin password")
		return
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		log.WithError(err).Warn("failed to create admin user")
		return
	}
	log.WithField("email", adminEmail).Info("admin user created (MASTER_ADMIN)")
}
