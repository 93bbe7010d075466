package model

type User struct {
	ID    string `json:"id" bson:"_id"`
	Email string `json:"email" bson:"email"`
	Name  string `json:"name" bson:"name"`
	Role  string `json:"role" bson:"role"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == "admin"
}

func (u *User) HolderInfo() HolderInfo {
	return HolderInfo{Name: u.Name, Email: u.Email}
}
