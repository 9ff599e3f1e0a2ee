package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shiftline/notifier/models"
	"github.com/shiftline/notifier/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type EmployeeController struct {
	DB *gorm.DB
}

func NewEmployeeController(db *gorm.DB) *EmployeeController {
	return &EmployeeController{DB: db}
}

// Register employee baru
func (ec *EmployeeController) Register(c *gin.Context) {
	type request struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role" binding:"required"` // admin, manager, staff
		CenterID *uint  `json:"center_id"`
		StoreID  *uint  `json:"store_id"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	emp := models.Employee{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashed),
		Role:     req.Role,
		CenterID: req.CenterID,
		StoreID:  req.StoreID,
	}

	if err := ec.DB.Create(&emp).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("New employee registered: %s (role=%s)", emp.Email, emp.Role)

	utils.RespondJSON(c, http.StatusCreated, "Employee registered", gin.H{
		"employee_id": emp.ID,
	})
}

// Login employee -> return JWT
func (ec *EmployeeController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var emp models.Employee
	if err := ec.DB.Where("email = ?", input.Email).First(&emp).Error; err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(emp.Password), []byte(input.Password)); err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}

	token, err := utils.GenerateToken(emp.ID, emp.Role)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Login successful for employee: %s", emp.Email)

	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
		"token": token,
		"role":  emp.Role,
	})
}

// GetProfile -> employee dari JWT claims
func (ec *EmployeeController) GetProfile(c *gin.Context) {
	employeeID, exists := c.Get("employee_id")
	if !exists {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("employee id not found in context"))
		return
	}

	var emp models.Employee
	if err := ec.DB.First(&emp, employeeID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Employee profile", emp)
}
