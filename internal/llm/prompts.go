package llm

import "fmt"

const textPromptTemplate = `Analiza el siguiente mensaje de WhatsApp y extrae la información de un gasto.

Mensaje: %q

Responde ÚNICAMENTE con un objeto JSON con este formato:
{
  "monto": número sin símbolos de moneda,
  "categoria": "categoría del gasto (comida, transporte, entretenimiento, salud, hogar, servicios, otros)",
  "descripcion": "descripción breve del gasto",
  "fecha": "fecha en formato YYYY-MM-DD; si no se menciona usa %s"
}

Si el mensaje NO describe un gasto, responde con:
{"error": "No se pudo identificar información de gasto en el mensaje"}

Ejemplos:
- "Gasté 25 soles en almuerzo" → {"monto": 25, "categoria": "comida", "descripcion": "almuerzo", "fecha": "%s"}
- "Compré medicina por 80" → {"monto": 80, "categoria": "salud", "descripcion": "medicina", "fecha": "%s"}

No agregues texto fuera del JSON.`

const receiptPrompt = `Analiza esta imagen de un comprobante, boleta, factura o captura de pago (Yape, Plin, transferencia) y extrae el gasto.

Responde ÚNICAMENTE con un objeto JSON con este formato:
{
  "monto": número sin símbolos ni separadores de miles,
  "comercio": "nombre del comercio o destinatario",
  "descripcion": "descripción breve del producto, servicio o concepto",
  "fecha": "fecha en formato YYYY-MM-DD",
  "metodoPago": "yape, plin, tarjeta, transferencia o efectivo",
  "moneda": "código de moneda (PEN, USD, EUR...)",
  "categoria": "comida, transporte, salud, entretenimiento, servicios, compras u otros",
  "subcategoria": "subcategoría más específica, o null"
}

Si la imagen NO es un comprobante válido o no se puede leer, responde con:
{"error": "No se pudo extraer información del comprobante"}

Indicaciones:
- Capturas de Yape o Plin: toma el monto enviado, el destinatario y la fecha; metodoPago debe ser "yape" o "plin".
- Boletas y facturas: toma el comercio, el total y la fecha de emisión.
- Infiere la categoría a partir del comercio o del concepto.
- El monto va sin símbolos: 25.50, no "S/ 25.50".
- No agregues texto fuera del JSON.`

func textPrompt(message, today string) string {
	return fmt.Sprintf(textPromptTemplate, message, today, today, today)
}
