package validators

import "go.mongodb.org/mongo-driver/bson"

var LockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"holder_id",
			"holder_info",
			"expires_at",
			"created_at",
			"last_activity",
		},
		"additionalProperties": false,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"holder_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"holder_info": bson.M{
				"bsonType": "object",
				"required": []string{"name", "email"},
				"properties": bson.M{
					"name":  bson.M{"bsonType": "string"},
					"email": bson.M{"bsonType": "string"},
					"position": bson.M{
						"bsonType": "object",
						"required": []string{"x", "y"},
						"properties": bson.M{
							"x": bson.M{"bsonType": []string{"double", "int", "long"}},
							"y": bson.M{"bsonType": []string{"double", "int", "long"}},
						},
					},
				},
			},

			"expires_at":    bson.M{"bsonType": "date"},
			"created_at":    bson.M{"bsonType": "date"},
			"last_activity": bson.M{"bsonType": "date"},
		},
	},
}
