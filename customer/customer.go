package customer

import "time"

// Customer describes a customer record. Records are created once and never updated.
type Customer struct {
	ID        string    `json:"id" gorm:"primaryKey" dynamodbav:"id"` // Assigned by the Store on insert
	Name      string    `json:"name" gorm:"not null" validate:"required" dynamodbav:"name"`
	Email     string    `json:"email" gorm:"not null" validate:"required" dynamodbav:"email"`
	Phone     string    `json:"phone" gorm:"not null" validate:"required" dynamodbav:"phone"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
}
