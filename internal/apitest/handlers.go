package apitest

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest covers both self-signup and admin-created agents
type RegisterRequest struct {
	FullName    string `json:"full_name"`
	Username    string `json:"username"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	Phone       string `json:"phone"`
	SponsorCode string `json:"sponsor_code"`
	Role        string `json:"role"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var user *User
	for _, u := range s.users {
		if u.Username == req.Username || u.Email == req.Username {
			user = u
			break
		}
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid credentials"})
		return
	}

	access, refresh := s.issueLocked(user)
	switch s.LoginShape {
	case ShapeShort:
		c.JSON(http.StatusOK, gin.H{"access": access, "refresh": refresh})
	case ShapeNested:
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"access": access, "refresh": refresh}})
	default:
		c.JSON(http.StatusOK, gin.H{"access_token": access, "refresh_token": refresh, "email": user.Email})
	}
}

func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == req.Email || (req.Username != "" && u.Username == req.Username) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "A user with that email already exists"})
			return
		}
	}

	username := req.Username
	if username == "" {
		username = strings.SplitN(req.Email, "@", 2)[0]
	}
	role := req.Role
	if role == "" {
		role = "agent"
	}

	sponsorID := 0
	if req.SponsorCode != "" {
		for _, u := range s.users {
			if u.ReferralCode == req.SponsorCode {
				sponsorID = u.ID
				break
			}
		}
		if sponsorID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Unknown sponsor code"})
			return
		}
	}

	user := s.addUserLocked(username, req.FullName, req.Email, req.Password, role, sponsorID)
	user.Phone = req.Phone

	// Self-signup gets a session, admin-created agents do not
	if req.FullName != "" {
		access, refresh := s.issueLocked(user)
		c.JSON(http.StatusCreated, gin.H{"access_token": access, "refresh_token": refresh, "email": user.Email})
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) refreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	delay := s.RefreshDelay
	s.mu.Unlock()
	time.Sleep(delay)

	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.refresh[req.RefreshToken]
	if s.FailRefresh || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid or expired"})
		return
	}

	// Rotate: the old refresh token stops working
	delete(s.refresh, req.RefreshToken)
	user := s.users[userID]
	access, refresh := s.issueLocked(user)
	c.JSON(http.StatusOK, gin.H{"access_token": access, "refresh_token": refresh, "email": user.Email})
}

func (s *Server) listAgents(c *gin.Context) {
	search := strings.ToLower(c.Query("search"))
	phone := c.Query("phone")

	s.mu.Lock()
	defer s.mu.Unlock()

	agents := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		if search != "" && !strings.Contains(strings.ToLower(u.Username+" "+u.Email), search) {
			continue
		}
		if phone != "" && !strings.Contains(u.Phone, phone) {
			continue
		}
		agents = append(agents, u)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	c.JSON(http.StatusOK, agents)
}

// downline returns every agent below id, with levels counted from id's children
func (s *Server) downline(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; err != nil || !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}

	var out []User
	frontier := []int{id}
	for level := 1; len(frontier) > 0; level++ {
		var next []int
		for _, parent := range frontier {
			for _, u := range s.sortedUsersLocked() {
				if u.SponsorID == parent {
					entry := *u
					entry.Level = level
					out = append(out, entry)
					next = append(next, u.ID)
				}
			}
		}
		frontier = next
	}
	if out == nil {
		out = []User{}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) sortedUsersLocked() []*User {
	users := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// Vehicle is a catalogue entry
type Vehicle struct {
	ID             int    `json:"id"`
	Brand          string `json:"brand"`
	Name           string `json:"name"`
	ModelNumber    string `json:"model_number"`
	Price          string `json:"price"`
	CommissionBase string `json:"commission_base"`
}

// AddVehicle seeds a vehicle
func (s *Server) AddVehicle(v Vehicle) *Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.ID = s.nextID
	s.nextID++
	s.vehicles[v.ID] = &v
	return &v
}

func (s *Server) listVehicles(c *gin.Context) {
	brand := c.Query("brand")
	search := strings.ToLower(c.Query("search"))

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Vehicle{}
	for _, v := range s.vehicles {
		if brand != "" && !strings.EqualFold(v.Brand, brand) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(v.Brand+" "+v.Name+" "+v.ModelNumber), search) {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	// Paginated envelope, as the real backend does for ?page=
	if c.Query("page") != "" {
		c.JSON(http.StatusOK, gin.H{"count": len(out), "results": out})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createVehicle(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := &Vehicle{ID: s.nextID}
	applyVehicle(v, body)
	if v.Brand == "" || v.ModelNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"brand": []string{"This field is required."}})
		return
	}
	s.nextID++
	s.vehicles[v.ID] = v
	c.JSON(http.StatusCreated, v)
}

func (s *Server) updateVehicle(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[atoi(c.Param("id"))]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	applyVehicle(v, body)
	c.JSON(http.StatusOK, v)
}

func (s *Server) deleteVehicle(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := atoi(c.Param("id"))
	if _, ok := s.vehicles[id]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	delete(s.vehicles, id)
	c.Status(http.StatusNoContent)
}

func applyVehicle(v *Vehicle, body map[string]any) {
	for key, value := range body {
		switch key {
		case "brand":
			v.Brand = str(value)
		case "name":
			v.Name = str(value)
		case "model_number":
			v.ModelNumber = str(value)
		case "price":
			v.Price = str(value)
		case "commission_base":
			v.CommissionBase = str(value)
		}
	}
}

// Sale is a sales record
type Sale struct {
	ID           int    `json:"id"`
	Agent        int    `json:"agent"`
	AgentName    string `json:"agent_name"`
	Vehicle      int    `json:"vehicle"`
	VehicleName  string `json:"vehicle_name"`
	CustomerName string `json:"customer_name"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
	SaleDate     string `json:"sale_date"`
}

func (s *Server) listSales(c *gin.Context) {
	search := strings.ToLower(c.Query("search"))

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Sale{}
	for _, sale := range s.sales {
		if search != "" && !strings.Contains(strings.ToLower(sale.CustomerName+" "+sale.AgentName+" "+sale.VehicleName), search) {
			continue
		}
		out = append(out, *sale)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.JSON(http.StatusOK, out)
}

func (s *Server) createSale(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale := &Sale{ID: s.nextID, Status: "pending", SaleDate: time.Now().UTC().Format("2006-01-02")}
	if err := s.applySaleLocked(sale, body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	s.nextID++
	s.sales[sale.ID] = sale
	c.JSON(http.StatusCreated, sale)
}

func (s *Server) updateSale(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[atoi(c.Param("id"))]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	if err := s.applySaleLocked(sale, body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (s *Server) deleteSale(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := atoi(c.Param("id"))
	if _, ok := s.sales[id]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	delete(s.sales, id)
	c.Status(http.StatusNoContent)
}

func (s *Server) applySaleLocked(sale *Sale, body map[string]any) error {
	for key, value := range body {
		switch key {
		case "agent":
			agent, ok := s.users[atoi(str(value))]
			if !ok {
				return fmt.Errorf("unknown agent %v", value)
			}
			sale.Agent, sale.AgentName = agent.ID, agent.Username
		case "vehicle":
			vehicle, ok := s.vehicles[atoi(str(value))]
			if !ok {
				return fmt.Errorf("unknown vehicle %v", value)
			}
			sale.Vehicle, sale.VehicleName = vehicle.ID, strings.TrimSpace(vehicle.Brand+" "+vehicle.Name)
		case "customer_name":
			sale.CustomerName = str(value)
		case "amount":
			sale.Amount = str(value)
		case "status":
			sale.Status = str(value)
		case "sale_date":
			sale.SaleDate = str(value)
		}
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
