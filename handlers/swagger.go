package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers the API documentation endpoints.
// - GET /swagger/index.html  -> Swagger UI loading the document below
// - GET /swagger/doc.json    -> OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Phishers Marketplace API - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": {
    "title": "Phishers Marketplace API",
    "version": "1.0.0"
  },
  "components": {
    "securitySchemes": {
      "bearer": {
        "type": "http",
        "scheme": "bearer",
        "bearerFormat": "JWT"
      }
    }
  },
  "paths": {
    "/": {
      "get": {
        "summary": "Welcome message",
        "responses": {
          "200": {
            "description": "welcome"
          }
        }
      }
    },
    "/health": {
      "get": {
        "summary": "Liveness check",
        "responses": {
          "200": {
            "description": "healthy"
          }
        }
      }
    },
    "/ready": {
      "get": {
        "summary": "Readiness check",
        "responses": {
          "200": {
            "description": "ready"
          },
          "503": {
            "description": "not ready"
          }
        }
      }
    },
    "/metrics": {
      "get": {
        "summary": "Prometheus metrics",
        "responses": {
          "200": {
            "description": "metrics"
          }
        }
      }
    },
    "/user/register": {
      "post": {
        "summary": "Register a new user",
        "responses": {
          "201": {
            "description": "user created"
          },
          "400": {
            "description": "email taken or invalid input"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "name": {
                    "type": "string"
                  },
                  "email": {
                    "type": "string"
                  },
                  "password": {
                    "type": "string"
                  }
                }
              }
            }
          }
        }
      }
    },
    "/user/token": {
      "post": {
        "summary": "OAuth2 password login",
        "responses": {
          "200": {
            "description": "access and refresh tokens"
          },
          "401": {
            "description": "Incorrect email or password"
          }
        },
        "requestBody": {
          "content": {
            "application/x-www-form-urlencoded": {
              "schema": {
                "type": "object",
                "properties": {
                  "username": {
                    "type": "string"
                  },
                  "password": {
                    "type": "string"
                  }
                }
              }
            }
          }
        }
      }
    },
    "/user/me": {
      "get": {
        "summary": "Current user",
        "responses": {
          "200": {
            "description": "user"
          },
          "401": {
            "description": "Could not validate credentials"
          },
          "403": {
            "description": "Account suspended"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/user/refresh": {
      "post": {
        "summary": "Refresh access token",
        "responses": {
          "200": {
            "description": "new access token"
          },
          "401": {
            "description": "invalid refresh token"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "refresh_token": {
                    "type": "string"
                  }
                }
              }
            }
          }
        }
      }
    },
    "/user/logout": {
      "post": {
        "summary": "Logout and invalidate tokens",
        "responses": {
          "200": {
            "description": "logged out"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "refresh_token": {
                    "type": "string"
                  }
                }
              }
            }
          }
        }
      }
    },
    "/friends": {
      "get": {
        "summary": "List friends",
        "responses": {
          "200": {
            "description": "friends"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/friends/add_friend/{friend_id}": {
      "post": {
        "summary": "Add a friend",
        "responses": {
          "200": {
            "description": "friendship"
          },
          "400": {
            "description": "self or existing friendship"
          },
          "404": {
            "description": "user not found"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/friends/add_friend/users": {
      "get": {
        "summary": "List users (page, limit, search)",
        "responses": {
          "200": {
            "description": "user page"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/friends/{friend_id}": {
      "delete": {
        "summary": "Remove a friend",
        "responses": {
          "204": {
            "description": "removed"
          },
          "404": {
            "description": "not friends"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/chat": {
      "get": {
        "summary": "List chat contacts",
        "responses": {
          "200": {
            "description": "contacts"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/chat/send": {
      "post": {
        "summary": "Send an encrypted message",
        "responses": {
          "200": {
            "description": "message"
          },
          "400": {
            "description": "invalid message"
          },
          "404": {
            "description": "receiver not found"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "receiver_id": {
                    "type": "string"
                  },
                  "message_sender_encrypted": {
                    "type": "string"
                  },
                  "message_receiver_encrypted": {
                    "type": "string"
                  },
                  "message_type": {
                    "type": "string"
                  },
                  "attachment_url": {
                    "type": "string"
                  }
                }
              }
            }
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/chat/{receiver_id}": {
      "get": {
        "summary": "Conversation history",
        "responses": {
          "200": {
            "description": "messages"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/chat/keys/{peer_id}": {
      "put": {
        "summary": "Store conversation keys",
        "responses": {
          "200": {
            "description": "keys"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "encrypted_key": {
                    "type": "string"
                  },
                  "peer_encrypted_key": {
                    "type": "string"
                  }
                }
              }
            }
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      },
      "get": {
        "summary": "Get conversation keys",
        "responses": {
          "200": {
            "description": "keys"
          },
          "404": {
            "description": "not found"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/chat/ws": {
      "get": {
        "summary": "Websocket for live messages (token query parameter)",
        "responses": {
          "101": {
            "description": "switching protocols"
          },
          "401": {
            "description": "unauthorized"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/groups/": {
      "get": {
        "summary": "Groups of the caller",
        "responses": {
          "200": {
            "description": "groups_list"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      },
      "post": {
        "summary": "Create a group",
        "responses": {
          "201": {
            "description": "group"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "name": {
                    "type": "string"
                  },
                  "description": {
                    "type": "string"
                  }
                }
              }
            }
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/groups/{id}": {
      "get": {
        "summary": "Get a group",
        "responses": {
          "200": {
            "description": "group"
          },
          "403": {
            "description": "not a member"
          },
          "404": {
            "description": "not found"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/groups/{id}/members": {
      "get": {
        "summary": "List members",
        "responses": {
          "200": {
            "description": "members"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      },
      "post": {
        "summary": "Add a member",
        "responses": {
          "201": {
            "description": "membership"
          },
          "403": {
            "description": "forbidden"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "user_id": {
                    "type": "string"
                  },
                  "role": {
                    "type": "string"
                  }
                }
              }
            }
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/groups/{id}/members/{user_id}": {
      "delete": {
        "summary": "Remove a member or leave",
        "responses": {
          "204": {
            "description": "removed"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/groups/{id}/messages": {
      "post": {
        "summary": "Send a group message",
        "responses": {
          "200": {
            "description": "message"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "message_sender_encrypted": {
                    "type": "string"
                  },
                  "message_receiver_encrypted": {
                    "type": "string"
                  },
                  "message_type": {
                    "type": "string"
                  },
                  "attachment_url": {
                    "type": "string"
                  }
                }
              }
            }
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      },
      "get": {
        "summary": "Group message history",
        "responses": {
          "200": {
            "description": "messages"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/marketplace/items": {
      "get": {
        "summary": "List items (category, status, seller_id, min_price, max_price, search, page, limit)",
        "responses": {
          "200": {
            "description": "item page"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      },
      "post": {
        "summary": "Create an item",
        "responses": {
          "201": {
            "description": "item"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "title": {
                    "type": "string"
                  },
                  "description": {
                    "type": "string"
                  },
                  "price": {
                    "type": "number"
                  },
                  "category": {
                    "type": "string"
                  },
                  "location": {
                    "type": "string"
                  },
                  "publish": {
                    "type": "boolean"
                  }
                }
              }
            }
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/marketplace/items/{id}": {
      "get": {
        "summary": "Get an item",
        "responses": {
          "200": {
            "description": "item"
          },
          "404": {
            "description": "not found"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      },
      "patch": {
        "summary": "Update an item",
        "responses": {
          "200": {
            "description": "item"
          },
          "403": {
            "description": "not the seller"
          },
          "409": {
            "description": "immutable"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "title": {
                    "type": "string"
                  },
                  "description": {
                    "type": "string"
                  },
                  "price": {
                    "type": "number"
                  },
                  "category": {
                    "type": "string"
                  },
                  "location": {
                    "type": "string"
                  }
                }
              }
            }
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      },
      "delete": {
        "summary": "Remove an item",
        "responses": {
          "204": {
            "description": "removed"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/marketplace/items/{id}/publish": {
      "post": {
        "summary": "Publish a draft",
        "responses": {
          "200": {
            "description": "item"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/marketplace/items/{id}/images": {
      "post": {
        "summary": "Upload an image (multipart field file)",
        "responses": {
          "201": {
            "description": "item"
          },
          "400": {
            "description": "invalid image"
          },
          "503": {
            "description": "storage unavailable"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/marketplace/items/{id}/images/{index}": {
      "get": {
        "summary": "Redirect to an image",
        "responses": {
          "307": {
            "description": "redirect"
          },
          "404": {
            "description": "not found"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/marketplace/items/{id}/purchase": {
      "post": {
        "summary": "Purchase an item",
        "responses": {
          "201": {
            "description": "transaction"
          },
          "409": {
            "description": "open transaction exists"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "payment_method": {
                    "type": "string"
                  },
                  "shipping_address": {
                    "type": "string"
                  },
                  "notes": {
                    "type": "string"
                  }
                }
              }
            }
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/marketplace/transactions": {
      "get": {
        "summary": "List own transactions (role, status)",
        "responses": {
          "200": {
            "description": "transactions"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/marketplace/transactions/{id}": {
      "get": {
        "summary": "Get a transaction",
        "responses": {
          "200": {
            "description": "transaction"
          },
          "404": {
            "description": "not found"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/marketplace/transactions/{id}/status": {
      "post": {
        "summary": "Advance a transaction",
        "responses": {
          "200": {
            "description": "transaction"
          },
          "400": {
            "description": "invalid transition"
          },
          "403": {
            "description": "forbidden"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "status": {
                    "type": "string"
                  },
                  "payment_id": {
                    "type": "string"
                  },
                  "tracking_number": {
                    "type": "string"
                  },
                  "notes": {
                    "type": "string"
                  }
                }
              }
            }
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/admin/users": {
      "get": {
        "summary": "List users",
        "responses": {
          "200": {
            "description": "user page"
          },
          "403": {
            "description": "admin required"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/admin/users/{id}": {
      "get": {
        "summary": "Get a user",
        "responses": {
          "200": {
            "description": "user"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      },
      "patch": {
        "summary": "Update a user",
        "responses": {
          "200": {
            "description": "user"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "name": {
                    "type": "string"
                  },
                  "email": {
                    "type": "string"
                  },
                  "is_admin": {
                    "type": "boolean"
                  },
                  "is_suspended": {
                    "type": "boolean"
                  },
                  "suspension_reason": {
                    "type": "string"
                  }
                }
              }
            }
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/admin/users/{id}/suspend": {
      "post": {
        "summary": "Suspend a user",
        "responses": {
          "200": {
            "description": "user"
          }
        },
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "suspension_reason": {
                    "type": "string"
                  }
                }
              }
            }
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    },
    "/admin/users/{id}/unsuspend": {
      "post": {
        "summary": "Unsuspend a user",
        "responses": {
          "200": {
            "description": "user"
          }
        },
        "security": [
          {
            "bearer": []
          }
        ]
      }
    }
  }
}`
